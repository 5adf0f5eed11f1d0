package adapters

import "strings"

// Rule-to-CWE tables for tools whose output carries a rule identifier
// but no CWE. Consulted only when the record itself has no CWE.

var bearerRuleCWE = map[string]string{
	"javascript_lang_sql_injection":                        "CWE-89",
	"javascript_sequelize_sql_injection":                   "CWE-89",
	"javascript_express_sql_injection":                     "CWE-89",
	"javascript_lang_dangerous_insert_html":                "CWE-79",
	"javascript_express_cross_site_scripting":              "CWE-79",
	"javascript_express_open_redirect":                     "CWE-601",
	"javascript_express_path_traversal":                    "CWE-22",
	"javascript_lang_path_traversal":                       "CWE-22",
	"javascript_lang_os_command_injection":                 "CWE-78",
	"javascript_express_server_side_request_forgery":       "CWE-918",
	"javascript_lang_eval_usage":                           "CWE-95",
	"javascript_lang_weak_hash_md5":                        "CWE-327",
	"javascript_lang_weak_hash_sha1":                       "CWE-327",
	"javascript_jwt_hardcoded_secret":                      "CWE-798",
	"javascript_lang_hardcoded_secret":                     "CWE-798",
	"javascript_express_insecure_cookie":                   "CWE-614",
	"javascript_lang_insecure_randomness":                  "CWE-330",
	"javascript_lang_logger_leak":                          "CWE-532",
	"javascript_express_xml_external_entity_vulnerability": "CWE-611",
	"python_lang_sql_injection":                            "CWE-89",
	"python_lang_os_command_injection":                     "CWE-78",
	"python_lang_path_traversal":                           "CWE-22",
	"python_lang_deserialization_of_user_input":            "CWE-502",
}

var nodejsscanRuleCWE = map[string]string{
	"node_sqli_injection":            "CWE-89",
	"node_nosqli_injection":          "CWE-943",
	"node_nosqli_js_injection":       "CWE-943",
	"express_xss":                    "CWE-79",
	"handlebars_noescape":            "CWE-79",
	"node_ssrf":                      "CWE-918",
	"generic_path_traversal":         "CWE-22",
	"express_open_redirect":          "CWE-601",
	"express_open_redirect2":         "CWE-601",
	"eval_nodejs":                    "CWE-95",
	"eval_require":                   "CWE-95",
	"node_deserialize":               "CWE-502",
	"serializetojs_deserialize":      "CWE-502",
	"xxe_expat":                      "CWE-611",
	"xxe_sax":                        "CWE-611",
	"regex_dos":                      "CWE-1333",
	"node_md5":                       "CWE-327",
	"node_sha1":                      "CWE-327",
	"node_aes_ecb":                   "CWE-327",
	"node_insecure_random_generator": "CWE-338",
	"node_secret":                    "CWE-798",
	"node_password":                  "CWE-798",
	"node_api_key":                   "CWE-798",
	"hardcoded_jwt_secret":           "CWE-798",
	"generic_os_command_exec":        "CWE-78",
	"node_timing_attack":             "CWE-208",
	"cookie_session_no_httponly":     "CWE-1004",
	"detect-eval-with-expression":    "CWE-95",
	"detect-non-literal-fs-filename": "CWE-22",
	"detect-child-process":           "CWE-78",
	"detect-unsafe-regex":            "CWE-1333",
	"detect-pseudorandombytes":       "CWE-338",
}

var banditTestCWE = map[string]string{
	"B102": "CWE-78",
	"B104": "CWE-605",
	"B105": "CWE-259",
	"B106": "CWE-259",
	"B107": "CWE-259",
	"B108": "CWE-377",
	"B201": "CWE-94",
	"B301": "CWE-502",
	"B303": "CWE-327",
	"B306": "CWE-377",
	"B307": "CWE-78",
	"B311": "CWE-330",
	"B324": "CWE-327",
	"B501": "CWE-295",
	"B506": "CWE-20",
	"B602": "CWE-78",
	"B605": "CWE-78",
	"B608": "CWE-89",
	"B701": "CWE-94",
	"B703": "CWE-79",
}

var zapPluginCWE = map[string]string{
	"6":     "CWE-22",
	"7":     "CWE-98",
	"10020": "CWE-1021",
	"10021": "CWE-693",
	"10035": "CWE-319",
	"10038": "CWE-693",
	"10096": "CWE-200",
	"10202": "CWE-352",
	"20012": "CWE-352",
	"40012": "CWE-79",
	"40014": "CWE-79",
	"40018": "CWE-89",
	"40019": "CWE-89",
	"40024": "CWE-89",
	"40046": "CWE-918",
	"90020": "CWE-78",
	"90023": "CWE-611",
}

var nucleiTemplateCWE = map[string]string{
	"dvwa-default-login":        "CWE-1391",
	"generic-sqli":              "CWE-89",
	"error-based-sql-injection": "CWE-89",
	"reflected-xss":             "CWE-79",
	"generic-linux-lfi":         "CWE-22",
	"open-redirect":             "CWE-601",
	"ssrf-via-oast":             "CWE-918",
	"exposed-gitignore":         "CWE-200",
	"git-config":                "CWE-200",
	"swagger-api":               "CWE-200",
	"cors-misconfig":            "CWE-942",
}

var checkovRuleCWE = map[string]string{
	"CKV_DOCKER_1": "CWE-284",
	"CKV_DOCKER_2": "CWE-693",
	"CKV_DOCKER_3": "CWE-250",
	"CKV_DOCKER_4": "CWE-829",
	"CKV_DOCKER_5": "CWE-829",
	"CKV_DOCKER_7": "CWE-1104",
	"CKV_DOCKER_8": "CWE-250",
	"CKV_K8S_20":   "CWE-250",
	"CKV_K8S_23":   "CWE-250",
	"CKV_K8S_28":   "CWE-250",
	"CKV_K8S_37":   "CWE-250",
}

// Rules with these prefixes are secret scanners.
var checkovPrefixCWE = []struct{ prefix, cwe string }{
	{"CKV_SECRET_", "CWE-798"},
	{"CKV2_SECRET_", "CWE-798"},
}

func checkovCWE(checkID string) string {
	id := strings.ToUpper(checkID)
	if c, ok := checkovRuleCWE[id]; ok {
		return c
	}
	for _, p := range checkovPrefixCWE {
		if strings.HasPrefix(id, p.prefix) {
			return p.cwe
		}
	}
	return ""
}

// ruleCWE looks rule up as given, then lower-cased, then upper-cased.
func ruleCWE(table map[string]string, rule string) string {
	rule = strings.TrimSpace(rule)
	for _, k := range []string{rule, strings.ToLower(rule), strings.ToUpper(rule)} {
		if c, ok := table[k]; ok {
			return c
		}
	}
	return ""
}
