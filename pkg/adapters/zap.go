package adapters

import (
	"bytes"
	"encoding/xml"
	"net/url"
	"strings"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/jsonutil"
	"github.com/candyshop-benchmark/candyshop/pkg/strutil"
)

type zapSite struct {
	Name   string     `json:"@name" xml:"name,attr"`
	Alerts []zapAlert `json:"alerts" xml:"alerts>alertitem"`
}

type zapAlert struct {
	PluginID  jsonutil.Scalar `json:"pluginid" xml:"pluginid"`
	Alert     string          `json:"alert" xml:"alert"`
	Name      string          `json:"name" xml:"name"`
	RiskCode  jsonutil.Scalar `json:"riskcode" xml:"riskcode"`
	RiskDesc  string          `json:"riskdesc" xml:"riskdesc"`
	CWEID     jsonutil.Scalar `json:"cweid" xml:"cweid"`
	URI       string          `json:"uri,omitempty" xml:"uri"`
	Instances []zapInstance   `json:"instances" xml:"instances>instance"`
}

type zapInstance struct {
	URI    string `json:"uri" xml:"uri"`
	Method string `json:"method" xml:"method"`
	Param  string `json:"param" xml:"param"`
}

// parseZAP reads the ZAP traditional JSON report and, when the file
// starts with '<', the traditional XML report. An alert produces one
// finding per distinct (method, uri, param) instance.
func parseZAP(src Source, sev *SeverityTable) ([]finding.Finding, error) {
	var (
		sites []zapSite
		err   error
	)
	if trimmed := bytes.TrimSpace(src.Data); len(trimmed) > 0 && trimmed[0] == '<' {
		sites, err = decodeZAPXML(trimmed)
	} else {
		sites, err = decodeZAPJSON(src.Data)
	}
	if err != nil {
		return nil, err
	}

	var out []finding.Finding
	for _, site := range sites {
		for _, a := range site.Alerts {
			raw, err := jsonutil.Marshal(a)
			if err != nil {
				return nil, err
			}
			out = append(out, zapFindings(site, a, jsontext.Value(raw), sev)...)
		}
	}
	return out, nil
}

func decodeZAPJSON(data []byte) ([]zapSite, error) {
	if jsonutil.Kind(data) != '{' {
		return nil, errUnexpectedShape
	}
	var report struct {
		Site jsontext.Value `json:"site"`
	}
	if err := jsonutil.UnmarshalLenient(data, &report); err != nil {
		return nil, err
	}
	var sites []zapSite
	switch report.Site.Kind() {
	case '[':
		if err := jsonutil.UnmarshalLenient(report.Site, &sites); err != nil {
			return nil, err
		}
	case '{':
		var one zapSite
		if err := jsonutil.UnmarshalLenient(report.Site, &one); err != nil {
			return nil, err
		}
		sites = append(sites, one)
	}
	return sites, nil
}

func decodeZAPXML(data []byte) ([]zapSite, error) {
	var report struct {
		XMLName xml.Name  `xml:"OWASPZAPReport"`
		Sites   []zapSite `xml:"site"`
	}
	if err := xml.Unmarshal(data, &report); err != nil {
		return nil, err
	}
	return report.Sites, nil
}

func zapFindings(site zapSite, a zapAlert, raw jsontext.Value, sev *SeverityTable) []finding.Finding {
	severity, ok := sev.Lookup(a.RiskCode.String())
	if !ok {
		label, _, _ := strings.Cut(a.RiskDesc, " ")
		severity = sev.Map(label)
	}
	cwe := finding.NormalizeCWE(a.CWEID.String())
	if cwe == "" {
		cwe = ruleCWE(zapPluginCWE, a.PluginID.String())
	}
	title := strutil.FirstNonEmpty(a.Alert, a.Name, a.PluginID.String())

	instances := a.Instances
	if len(instances) == 0 {
		instances = []zapInstance{{URI: strutil.FirstNonEmpty(a.URI, site.Name)}}
	}
	seen := make(map[zapInstance]bool, len(instances))
	out := make([]finding.Finding, 0, len(instances))
	for _, in := range instances {
		in.Method = strings.ToUpper(strings.TrimSpace(in.Method))
		in.URI = absoluteURI(site.Name, strings.TrimSpace(in.URI))
		if seen[in] {
			continue
		}
		seen[in] = true
		out = append(out, finding.Finding{
			CWE:      cwe,
			Severity: severity,
			Location: finding.Location{
				Kind:   finding.KindURL,
				Method: in.Method,
				URL:    in.URI,
				Param:  in.Param,
			},
			Description: title,
			RawID:       a.PluginID.String(),
			Raw:         raw,
		})
	}
	return out
}

// absoluteURI resolves a relative instance URI against the site name.
func absoluteURI(site, uri string) string {
	if uri == "" || site == "" || strings.Contains(uri, "://") {
		return uri
	}
	base, err := url.Parse(site)
	if err != nil {
		return uri
	}
	ref, err := url.Parse(uri)
	if err != nil {
		return uri
	}
	return base.ResolveReference(ref).String()
}
