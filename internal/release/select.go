package release

import (
	"fmt"
	"regexp"
)

// CompilePattern compiles an asset-name pattern.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidPattern, pattern, err)
	}
	return re, nil
}

// SelectAsset returns the first asset, in list order, whose name contains a
// match for pattern.
func SelectAsset(d *Descriptor, pattern string) (*Asset, error) {
	re, err := CompilePattern(pattern)
	if err != nil {
		return nil, err
	}
	if d != nil {
		for i := range d.Assets {
			if re.MatchString(d.Assets[i].Name) {
				a := d.Assets[i]
				return &a, nil
			}
		}
	}
	return nil, fmt.Errorf("%w %q", ErrNoMatchingAsset, pattern)
}
