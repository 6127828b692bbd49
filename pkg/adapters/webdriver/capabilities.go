package webdriver

import "github.com/aretw0/tendril/pkg/domain"

// Capabilities builds the W3C alwaysMatch capabilities for cfg.
// Entries in cfg.Capabilities override the derived ones.
func Capabilities(cfg domain.DriverConfig) map[string]any {
	caps := map[string]any{
		"appium:chromedriverArgs": map[string]any{},
	}
	if cfg.IsIOS() {
		caps["platformName"] = "iOS"
		caps["appium:automationName"] = "XCUITest"
	} else {
		caps["platformName"] = "Android"
		caps["appium:automationName"] = "UiAutomator2"
	}
	if udid := cfg.UDID(); udid != "" {
		caps["appium:udid"] = udid
	}
	if cfg.AppPackage != "" {
		caps["appium:appPackage"] = cfg.AppPackage
		if cfg.AppActivity != "" {
			caps["appium:appActivity"] = cfg.AppActivity
		}
	}
	if cfg.AppPath != "" && cfg.AppPackage == "" {
		caps["appium:app"] = cfg.AppPath
		caps["appium:enforceAppInstall"] = true
	}
	if cfg.BundleID != "" && cfg.IsIOS() {
		caps["appium:bundleId"] = cfg.BundleID
	}
	for k, v := range cfg.Capabilities {
		caps[k] = v
	}
	return caps
}

// strategies maps short locator types to W3C / Appium strategies.
var strategies = map[string]string{
	"css":                 "css selector",
	"css_selector":        "css selector",
	"class_name":          "class name",
	"link_text":           "link text",
	"partial_link_text":   "partial link text",
	"tag_name":            "tag name",
	"accessibility_id":    "accessibility id",
	"android_uiautomator": "-android uiautomator",
	"ios_predicate":       "-ios predicate string",
	"ios_class_chain":     "-ios class chain",
}

// Strategy returns the WebDriver "using" value for a locator type.
// Unknown types (id, xpath, name, ...) pass through unchanged.
func Strategy(locatorType string) string {
	if s, ok := strategies[locatorType]; ok {
		return s
	}
	return locatorType
}
