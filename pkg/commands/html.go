package commands

import "regexp"

var noisyBlocks = []*regexp.Regexp{
	regexp.MustCompile(`(?s)<script[^>]*>.*?</script>`),
	regexp.MustCompile(`(?s)<style[^>]*>.*?</style>`),
	regexp.MustCompile(`(?s)<svg[^>]*>.*?</svg>`),
}

// CleanHTML strips script, style and svg blocks from page source.
func CleanHTML(src string) string {
	for _, re := range noisyBlocks {
		src = re.ReplaceAllString(src, "")
	}
	return src
}
