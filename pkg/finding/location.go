package finding

import (
	"strconv"
	"strings"
)

// LocationKind tells which Location fields are meaningful.
type LocationKind string

const (
	// KindFile is a source file with an optional line range (SAST).
	KindFile LocationKind = "file"
	// KindURL is an HTTP endpoint with method and parameter (DAST).
	KindURL LocationKind = "url"
	// KindPackage is a dependency name and version range (SCA).
	KindPackage LocationKind = "package"
	// KindImage is an OS or language package inside a container image.
	KindImage LocationKind = "image"
	// KindResource is an infrastructure-as-code resource and rule (IaC).
	KindResource LocationKind = "resource"
)

// Location is the tool-reported position of a finding. Which fields are
// set depends on Kind.
type Location struct {
	Kind      LocationKind `json:"kind"`
	Path      string       `json:"path,omitempty"`
	StartLine int          `json:"start_line,omitzero"`
	EndLine   int          `json:"end_line,omitzero"`
	Method    string       `json:"method,omitempty"`
	URL       string       `json:"url,omitempty"`
	Param     string       `json:"param,omitempty"`
	Package   string       `json:"package,omitempty"`
	Version   string       `json:"version,omitempty"`
	Layer     string       `json:"layer,omitempty"`
	Resource  string       `json:"resource,omitempty"`
	RuleID    string       `json:"rule_id,omitempty"`
}

// String renders the location the way it appears in CSV output.
func (l Location) String() string {
	switch l.Kind {
	case KindFile:
		return fileRef(l.Path, l.StartLine, l.EndLine)
	case KindURL:
		var b strings.Builder
		if l.Method != "" {
			b.WriteString(strings.ToUpper(l.Method))
			b.WriteByte(' ')
		}
		b.WriteString(l.URL)
		if l.Param != "" {
			b.WriteByte('#')
			b.WriteString(l.Param)
		}
		return b.String()
	case KindPackage, KindImage:
		s := l.Package
		if l.Version != "" {
			s += "@" + l.Version
		}
		if l.Layer != "" {
			s += " (" + l.Layer + ")"
		}
		return s
	case KindResource:
		s := fileRef(l.Path, l.StartLine, 0)
		if l.Resource != "" {
			s += " " + l.Resource
		}
		if l.RuleID != "" {
			s += " [" + l.RuleID + "]"
		}
		return s
	}
	return ""
}

func fileRef(path string, start, end int) string {
	if start <= 0 {
		return path
	}
	s := path + ":" + strconv.Itoa(start)
	if end > start {
		s += "-" + strconv.Itoa(end)
	}
	return s
}
