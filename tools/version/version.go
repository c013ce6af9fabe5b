/*
Copyright (c) 2019-2021 Andreas T Jonsson

This software is provided 'as-is', without any express or implied
warranty. In no event will the authors be held liable for any damages
arising from the use of this software.

Permission is granted to anyone to use this software for any purpose,
including commercial applications, and to alter it and redistribute it
freely, subject to the following restrictions:

1. The origin of this software must not be misrepresented; you must not
   claim that you wrote the original software. If you use this software
   in a product, an acknowledgment in the product documentation would be
   appreciated but is not required.
2. Altered source versions must be plainly marked as such, and must not be
   misrepresented as being the original software.
3. This notice may not be removed or altered from any source distribution.
*/

// Command version generates the version package from VPC_VERSION and the
// current Git revision.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"go/format"
	"io"
	"log"
	"os"
	"os/exec"
	"path"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/spf13/afero"
)

const (
	defaultVersion = "0.1.0.0"
	startYear      = 2019
	copyrightFmt   = "Copyright (c) %v Andreas T Jonsson"
)

type release struct {
	Package             string
	Major, Minor, Patch uint8
	Build               string
	Hash                string
	Copyright           string
}

// parseVersion reads "major.minor.patch.build". A zero build number is
// left out of the generated version.
func parseVersion(s string) (release, error) {
	var r release

	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return r, fmt.Errorf("invalid version format: %q", s)
	}

	for i, dst := range []*uint8{&r.Major, &r.Minor, &r.Patch} {
		n, err := strconv.ParseUint(parts[i], 10, 8)
		if err != nil {
			return r, fmt.Errorf("invalid version number %q: %w", parts[i], err)
		}
		*dst = uint8(n)
	}

	if _, err := strconv.ParseUint(parts[3], 10, 32); err != nil {
		return r, fmt.Errorf("invalid build number %q: %w", parts[3], err)
	}
	if parts[3] != "0" {
		r.Build = parts[3]
	}
	return r, nil
}

func copyright(year int) string {
	if year == startYear {
		return fmt.Sprintf(copyrightFmt, startYear)
	}
	return fmt.Sprintf(copyrightFmt, fmt.Sprintf("%d-%d", startYear, year))
}

func gitHash() string {
	res, err := exec.Command("git", "rev-parse", "HEAD").Output()
	if err != nil {
		log.Print("could not parse Git hash: ", err)
		return ""
	}
	return strings.TrimSpace(string(res))
}

// generate writes the gofmt-ed source of the version package.
func generate(w io.Writer, r release) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, r); err != nil {
		return err
	}

	src, err := format.Source(buf.Bytes())
	if err != nil {
		return fmt.Errorf("generated source is invalid: %w", err)
	}
	_, err = w.Write(src)
	return err
}

func main() {
	file := flag.String("file", "-", "Save the generated output to file.")
	pkg := flag.String("package", "version", "Package name of the generated output.")
	env := flag.String("variable", "VPC_VERSION", "Environment variable containing the version number.")
	flag.Parse()
	log.SetFlags(0)

	version, ok := os.LookupEnv(*env)
	if !ok || version == "" {
		log.Printf("%s is not set. Defaulting to %s", *env, defaultVersion)
		version = defaultVersion
	}

	r, err := parseVersion(version)
	if err != nil {
		log.Fatal(err)
	}
	r.Package = *pkg
	r.Hash = gitHash()
	r.Copyright = copyright(time.Now().Year())

	if *file == "-" {
		if err := generate(os.Stdout, r); err != nil {
			log.Fatal(err)
		}
		return
	}

	var buf bytes.Buffer
	if err := generate(&buf, r); err != nil {
		log.Fatal(err)
	}

	fs := afero.NewOsFs()
	if err := fs.MkdirAll(path.Dir(*file), 0755); err != nil {
		log.Fatal(err)
	}
	if err := afero.WriteFile(fs, *file, buf.Bytes(), 0644); err != nil {
		log.Fatal(err)
	}
}

var tmpl = template.Must(template.New("version").Parse(`/*
Copyright (C) 2019-2020 Andreas T Jonsson

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

package {{.Package}}

var (
	Current   = Version{ {{.Major}}, {{.Minor}}, {{.Patch}}, "{{.Build}}" }
	Copyright = "{{.Copyright}}"
	Hash      = "{{.Hash}}"
)
`))
