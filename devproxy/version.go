// Copyright (c) 2012-2016 The Revel Framework Authors, All rights reserved.
// Revel Framework source code and usage is governed by a MIT style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/revel/devproxy"
	"github.com/revel/devproxy/model"
	"github.com/revel/devproxy/utils"
)

var cmdVersion = &Command{
	UsageLine: "version",
	Short:     "displays the devproxy and Go version",
	Long: `
Displays the devproxy and Go version.

For example:

    devproxy version
`,
}

func init() {
	cmdVersion.RunWith = versionApp
}

// Displays the version of go and devproxy
func versionApp(c *model.CommandConfig, out io.Writer) error {
	v, err := model.ParseVersion(devproxy.Version)
	if err != nil {
		return utils.Wrapf(err, "devproxy version")
	}
	v.BuildDate = devproxy.BuildDate
	v.MinGoVersion = devproxy.MinimumGoVersion

	fmt.Fprintf(out, "devproxy %s\n", v)
	fmt.Fprintf(out, "\n   %s %s/%s\n\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)

	if !goSatisfies(runtime.Version(), devproxy.MinimumGoVersion) {
		utils.Logger.Warn("Go runtime older than required", "go", runtime.Version(), "required", devproxy.MinimumGoVersion)
	}
	return nil
}

// goSatisfies reports whether goVersion (like "go1.23.4") meets a
// requirement like ">= go1.23". Unparsable versions are accepted.
func goSatisfies(goVersion, requirement string) bool {
	required, err := model.ParseVersion(strings.TrimSpace(strings.TrimPrefix(requirement, ">=")))
	if err != nil {
		return true
	}
	actual, err := model.ParseVersion(goVersion)
	if err != nil {
		return true
	}
	return actual.Newer(required)
}
