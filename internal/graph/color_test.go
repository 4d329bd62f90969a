package graph

import (
	"testing"

	"attackgraph/pkg/models"
)

func TestColorize(t *testing.T) {
	cases := []struct {
		name string
		node models.Node
		want string
	}{
		{"vuln", models.Node{ID: "VULN:ESC1:User", Type: models.NodeVuln}, ColorRed},
		{"legacy vuln", models.Node{ID: "VULN:ESC8:CA", Type: "VULN"}, ColorRed},
		{"risky template eku", models.Node{Type: models.NodeTemplate, Attrs: map[string]interface{}{"ExtendedKeyUsage": []interface{}{"Client Authentication"}}}, ColorOrange},
		{"risky template flag", models.Node{Type: models.NodeTemplate, Attrs: map[string]interface{}{"risky": true}}, ColorOrange},
		{"plain template", models.Node{Type: models.NodeTemplate, Attrs: map[string]interface{}{"ExtendedKeyUsage": []string{"Code Signing"}}}, ColorBlue},
		{"ca", models.Node{Type: models.NodeCA}, ColorPurple},
		{"cadns", models.Node{Type: models.NodeCADNS}, ColorPurple},
		{"roastable user", models.Node{Type: models.NodeUser, Attrs: map[string]interface{}{"asrep_roastable": true}}, ColorDarkRed},
		{"user", models.Node{Type: models.NodeUser}, ColorGreen},
		{"group", models.Node{Type: models.NodeGroup}, ColorGreen},
		{"dc", models.Node{Type: models.NodeHost, Attrs: map[string]interface{}{"is_dc": true}}, ColorTeal},
		{"computer", models.Node{Type: models.NodeComputer}, ColorGray},
		{"spn", models.Node{ID: "SPN:MSSQLSvc/db", Type: "SPN"}, ColorYellow},
		{"share", models.Node{ID: "SHARE:10.0.0.5:C$", Type: models.NodeShare}, ColorTealGreen},
		{"unknown", models.Node{ID: "X", Type: models.NodeUnknown}, ColorDefault},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Colorize(tc.node); got != tc.want {
				t.Fatalf("Colorize(%+v) = %s, want %s", tc.node, got, tc.want)
			}
		})
	}
}
