package domain

import "time"

// Driver kinds understood by the bundled factories.
const (
	DriverWebDriver = "webdriver"
	DriverMemory    = "memory"
)

// DriverConfig is the deployment configuration a DriverFactory uses to open a session.
type DriverConfig struct {
	Kind         string         `yaml:"kind" mapstructure:"kind"`
	URL          string         `yaml:"url" mapstructure:"url"` // Appium / WebDriver endpoint
	UDIDAndroid  string         `yaml:"udid_android" mapstructure:"udid_android"`
	UDIDIOS      string         `yaml:"udid_ios" mapstructure:"udid_ios"`
	AppPackage   string         `yaml:"app_package" mapstructure:"app_package"`
	AppActivity  string         `yaml:"app_activity" mapstructure:"app_activity"`
	AppPath      string         `yaml:"app_path" mapstructure:"app_path"`
	BundleID     string         `yaml:"bundle_id" mapstructure:"bundle_id"`
	Platform     string         `yaml:"platform" mapstructure:"platform"`
	Capabilities map[string]any `yaml:"capabilities" mapstructure:"capabilities"`
	ImplicitWait time.Duration  `yaml:"implicit_wait" mapstructure:"implicit_wait"`
}

// UDID returns the configured device identifier, Android first.
func (c DriverConfig) UDID() string {
	if c.UDIDAndroid != "" {
		return c.UDIDAndroid
	}
	return c.UDIDIOS
}

// IsIOS reports whether the configuration targets an iOS device.
func (c DriverConfig) IsIOS() bool {
	if c.Platform != "" {
		return c.Platform == "ios"
	}
	return c.BundleID != "" && c.UDIDIOS != ""
}
