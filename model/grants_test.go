package model

import (
	"encoding/json"
	"testing"
)

func TestModuleGrants_Has(t *testing.T) {
	g := ModuleGrants{"dashboard", "leads"}
	if !g.Has("leads") {
		t.Error("Has(leads) = false, want true")
	}
	if g.Has("users") {
		t.Error("Has(users) = true, want false")
	}
}

func TestModuleGrants_Has_wildcard(t *testing.T) {
	g := ModuleGrants{Wildcard}
	for _, m := range []string{"dashboard", "roles", "anything"} {
		if !g.Has(m) {
			t.Errorf("wildcard should match %q", m)
		}
	}
}

func TestModuleGrants_Supplied_fromJSON(t *testing.T) {
	tests := []struct {
		name string
		json string
		want bool
	}{
		{"absent", `{"id":"u1"}`, false},
		{"null", `{"id":"u1","roleModules":null}`, false},
		{"empty", `{"id":"u1","roleModules":[]}`, true},
		{"populated", `{"id":"u1","roleModules":["leads"]}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var u SessionUser
			if err := json.Unmarshal([]byte(tt.json), &u); err != nil {
				t.Fatalf("Unmarshal error = %v", err)
			}
			if got := u.RoleModules.Supplied(); got != tt.want {
				t.Errorf("Supplied() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSessionUser_roleModulesRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		json string
		want bool
	}{
		{"absent", `{"id":"u1","role":"user"}`, false},
		{"empty", `{"id":"u1","role":"user","roleModules":[]}`, true},
		{"populated", `{"id":"u1","role":"user","roleModules":["leads"]}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var in SessionUser
			if err := json.Unmarshal([]byte(tt.json), &in); err != nil {
				t.Fatalf("Unmarshal error = %v", err)
			}
			out, err := json.Marshal(in)
			if err != nil {
				t.Fatalf("Marshal error = %v", err)
			}
			var back SessionUser
			if err := json.Unmarshal(out, &back); err != nil {
				t.Fatalf("Unmarshal(%s) error = %v", out, err)
			}
			if got := back.RoleModules.Supplied(); got != tt.want {
				t.Errorf("after round trip %s Supplied() = %v, want %v", out, got, tt.want)
			}
			if back.RoleModules.Has("leads") != in.RoleModules.Has("leads") {
				t.Errorf("after round trip %s grants changed", out)
			}
		})
	}
}
