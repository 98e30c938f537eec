package model

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

type Version struct {
	Prefix       string
	Major        int
	Minor        int
	Maintenance  int
	Suffix       string
	BuildDate    string
	MinGoVersion string
}

// Parses a version like v1.2.3a or 1.2.
var versionRegExp = regexp.MustCompile(`([^\d]*)?([0-9]*)\.([0-9]*)(\.([0-9]*))?(.*)`)

// Parse the version and return it as a Version object.
func ParseVersion(version string) (v *Version, err error) {
	v = &Version{}
	return v, v.ParseVersion(version)
}

// Parse the version into v.
func (v *Version) ParseVersion(version string) (err error) {
	parsedResult := versionRegExp.FindAllStringSubmatch(version, -1)
	if len(parsedResult) != 1 || len(parsedResult[0]) != 7 {
		err = errors.Errorf("Invalid version %s", version)
		return
	}

	v.Prefix = parsedResult[0][1]
	v.Major = v.intOrZero(parsedResult[0][2])
	v.Minor = v.intOrZero(parsedResult[0][3])
	v.Maintenance = v.intOrZero(parsedResult[0][5])
	v.Suffix = parsedResult[0][6]

	return
}

// Returns 0 or an int value for the string, errors are returned as 0.
func (v *Version) intOrZero(input string) (value int) {
	if input != "" {
		value, _ = strconv.Atoi(input)
	}
	return value
}

// Returns true if the version is newer or equal to o.
func (v *Version) Newer(o *Version) bool {
	if v.Major != o.Major {
		return v.Major > o.Major
	}
	if v.Minor != o.Minor {
		return v.Minor > o.Minor
	}
	if v.Maintenance != o.Maintenance {
		return v.Maintenance > o.Maintenance
	}
	return true
}

// Convert the version to a string.
func (v *Version) VersionString() string {
	return fmt.Sprintf("%s%d.%d.%d%s", v.Prefix, v.Major, v.Minor, v.Maintenance, v.Suffix)
}

// Convert the version build date and go version to a string.
func (v *Version) String() string {
	return fmt.Sprintf("Version: %s\nBuild Date: %s\nMinimum Go Version: %s",
		v.VersionString(), v.BuildDate, v.MinGoVersion)
}
