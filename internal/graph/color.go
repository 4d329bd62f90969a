package graph

import (
	"fmt"
	"strings"

	"attackgraph/pkg/models"
)

// Presentation colors returned by Colorize.
const (
	ColorRed       = "#e74c3c"
	ColorOrange    = "#e67e22"
	ColorBlue      = "#3498db"
	ColorPurple    = "#8e44ad"
	ColorDarkRed   = "#c0392b"
	ColorGreen     = "#2ecc71"
	ColorTeal      = "#1abc9c"
	ColorGray      = "#95a5a6"
	ColorYellow    = "#f1c40f"
	ColorTealGreen = "#16a085"
	ColorDefault   = "#7f8c8d"
)

// RiskyEKUs are the extended key usages that make a certificate template usable
// for client authentication.
var RiskyEKUs = []string{"Client Authentication", "Any Purpose"}

// Colorize classifies a node by type and attributes.
func Colorize(n models.Node) string {
	switch n.Type {
	case models.NodeVuln, "VULN":
		return ColorRed
	case models.NodeTemplate:
		if TemplateIsRisky(n.Attrs) {
			return ColorOrange
		}
		return ColorBlue
	case models.NodeCA, models.NodeCADNS:
		return ColorPurple
	case models.NodeUser, "USER":
		if Truthy(n.Attrs["asrep_roastable"]) {
			return ColorDarkRed
		}
		return ColorGreen
	case models.NodeGroup, "GROUP":
		return ColorGreen
	case models.NodeHost, models.NodeComputer:
		if Truthy(n.Attrs["is_dc"]) {
			return ColorTeal
		}
		return ColorGray
	}
	switch {
	case strings.HasPrefix(n.Type, "SPN"), strings.HasPrefix(n.ID, "SPN"):
		return ColorYellow
	case strings.HasPrefix(n.Type, "SHARE"), strings.HasPrefix(n.ID, "SHARE"):
		return ColorTealGreen
	}
	return ColorDefault
}

// TemplateIsRisky reports whether template attrs carry a risky EKU or an
// upstream risky mark.
func TemplateIsRisky(attrs map[string]interface{}) bool {
	if Truthy(attrs["risky"]) {
		return true
	}
	return HasRiskyEKU(StringList(attrs["ExtendedKeyUsage"]))
}

// HasRiskyEKU reports whether ekus contains one of RiskyEKUs.
func HasRiskyEKU(ekus []string) bool {
	for _, e := range ekus {
		for _, r := range RiskyEKUs {
			if e == r {
				return true
			}
		}
	}
	return false
}

// Truthy interprets loosely typed attribute values.
func Truthy(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return strings.EqualFold(val, "true") || val == "1"
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	default:
		return false
	}
}

// StringList accepts []string, []interface{} or a single string.
func StringList(v interface{}) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if item == nil {
				continue
			}
			if s, ok := item.(string); ok {
				out = append(out, s)
				continue
			}
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	default:
		return nil
	}
}
