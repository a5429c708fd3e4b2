package core

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PhotoRef is one renamed survey photo.
type PhotoRef struct {
	Location  string `json:"location"` // "cluster" or "P1".."P8"
	Source    string `json:"source"`   // path of the original under the input directory
	Name      string `json:"name"`     // new file name
	LocalPath string `json:"local_path"`
	PublicURL string `json:"public_url"`
}

// PhotoNamer derives stable names for survey photos. The name encodes the
// project, cluster, location, last four characters of the original file
// name and the survey date, so re-running a survey yields the same names.
type PhotoNamer struct {
	SourceDir  string // input directory the references are relative to
	LocalDir   string // output directory (or store prefix) for renamed copies
	PublicBase string // public URL base
}

// Name renames a single photo reference.
func (n PhotoNamer) Name(projectID, cluster, location, date, ref string) PhotoRef {
	ref = strings.TrimSpace(ref)
	source := filepath.Join(n.SourceDir, filepath.FromSlash(ref))
	filename := filepath.Base(source)

	name := fmt.Sprintf("%s_C%s_%s_%s_%s", projectID, cluster, location, pySlice(filename, -8, -4), date)
	name = strings.Join(strings.Fields(name), "")
	name += pySlice(filename, -4, len(filename))

	public := name
	if n.PublicBase != "" {
		public = strings.TrimRight(n.PublicBase, "/") + "/" + name
	}

	return PhotoRef{
		Location:  location,
		Source:    source,
		Name:      name,
		LocalPath: filepath.Join(n.LocalDir, name),
		PublicURL: public,
	}
}

// NameAll splits a '|' separated reference list and renames every entry.
func (n PhotoNamer) NameAll(projectID, cluster, location, date, refs string) []PhotoRef {
	if strings.TrimSpace(refs) == "" {
		return nil
	}
	var out []PhotoRef
	for _, ref := range strings.Split(refs, "|") {
		if strings.TrimSpace(ref) == "" {
			continue
		}
		out = append(out, n.Name(projectID, cluster, location, date, ref))
	}
	return out
}

// pySlice returns s[i:j] with negative indices counted from the end and
// out-of-range indices clamped.
func pySlice(s string, i, j int) string {
	l := len(s)
	clamp := func(x int) int {
		if x < 0 {
			x += l
		}
		if x < 0 {
			return 0
		}
		if x > l {
			return l
		}
		return x
	}
	i, j = clamp(i), clamp(j)
	if i >= j {
		return ""
	}
	return s[i:j]
}
