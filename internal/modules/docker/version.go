package docker

import (
	"fmt"
	"regexp"

	"github.com/coreos/go-semver/semver"
)

var versionRe = regexp.MustCompile(`(\d+)\.(\d+)\.(\d+)(-[0-9A-Za-z.-]+)?`)

// ParseVersion извлекает semver из строки вида
// "Docker version 24.0.7, build afdd53b".
func ParseVersion(banner string) (*semver.Version, error) {
	m := versionRe.FindStringSubmatch(banner)
	if m == nil {
		return nil, fmt.Errorf("no version in %q", banner)
	}
	// docker 17.x использовал месяцы с ведущим нулем: 17.03.0-ce
	s := fmt.Sprintf("%s.%s.%s%s", trimZeros(m[1]), trimZeros(m[2]), trimZeros(m[3]), m[4])
	v, err := semver.NewVersion(s)
	if err != nil {
		return nil, fmt.Errorf("parse version %q: %w", s, err)
	}
	return v, nil
}

func trimZeros(s string) string {
	for len(s) > 1 && s[0] == '0' {
		s = s[1:]
	}
	return s
}
