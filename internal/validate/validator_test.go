package validate

import (
	"errors"
	"fmt"
	"sqpplus/internal/domain"
	"strings"
	"testing"
)

type fakeLooker struct {
	present map[string]bool
	looked  []string
}

func (f *fakeLooker) LookPath(name string) (string, error) {
	f.looked = append(f.looked, name)
	if f.present[name] {
		return "/usr/bin/" + name, nil
	}
	return "", fmt.Errorf("not found: %s", name)
}

func allTools() *fakeLooker {
	return &fakeLooker{present: map[string]bool{"wget": true, "curl": true, "tar": true, "screen": true}}
}

func validRequest() domain.RawDeployRequest {
	return domain.RawDeployRequest{
		Name:       "alpha",
		BasePath:   "/srv/games",
		GamePort:   "7787",
		QueryPort:  "27165",
		MaxPlayers: "80",
		RconSecret: "hunter2",
	}
}

func TestValidateAcceptsExample(t *testing.T) {
	req, err := New(allTools()).Validate(validRequest())
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if req.GamePort != 7787 || req.QueryPort != 27165 || req.MaxPlayers != 80 {
		t.Errorf("Unexpected typed values: %+v", req)
	}
	if req.Downloader != "wget" {
		t.Errorf("Downloader = %q, want wget", req.Downloader)
	}
}

func TestValidateNames(t *testing.T) {
	accepted := []string{"alpha", "A_1", "server_01", "X", "___", "Squad2024"}
	for _, name := range accepted {
		raw := validRequest()
		raw.Name = name
		if _, err := New(allTools()).Validate(raw); err != nil {
			t.Errorf("Name %q rejected: %v", name, err)
		}
	}

	rejected := []string{"my server", "a/b", "../etc", "semi;colon", "dash-name", "tab\tname", "ünicode"}
	for _, name := range rejected {
		raw := validRequest()
		raw.Name = name
		_, err := New(allTools()).Validate(raw)
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("Name %q accepted, want rejection", name)
			continue
		}
		if len(verr.Fields["name"]) != 1 {
			t.Errorf("Name %q: expected a name-specific error, got %v", name, verr.Messages)
		}
	}
}

func TestValidatePortBoundaries(t *testing.T) {
	cases := []struct {
		port string
		ok   bool
	}{
		{"0", false},
		{"1", true},
		{"65535", true},
		{"65536", false},
		{"-1", false},
		{"abc", false},
		{"", false},
	}

	for _, tc := range cases {
		for _, field := range []string{"gamePort", "queryPort"} {
			raw := validRequest()
			if field == "gamePort" {
				raw.GamePort = tc.port
			} else {
				raw.QueryPort = tc.port
			}
			_, err := New(allTools()).Validate(raw)
			if tc.ok && err != nil {
				t.Errorf("%s=%q rejected: %v", field, tc.port, err)
			}
			if !tc.ok {
				var verr *domain.ValidationError
				if !errors.As(err, &verr) || len(verr.Fields[field]) != 1 {
					t.Errorf("%s=%q: expected one %s error, got %v", field, tc.port, field, err)
				}
			}
		}
	}
}

func TestValidateCollectsAllErrorsInOrder(t *testing.T) {
	raw := domain.RawDeployRequest{
		Name:       "bad name",
		BasePath:   "relative/path",
		GamePort:   "x",
		QueryPort:  "70000",
		MaxPlayers: "0",
	}

	_, err := New(&fakeLooker{present: map[string]bool{"curl": true}}).Validate(raw)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}

	want := []string{
		"Server Name can only contain letters, numbers, and underscores.",
		"Base Installation Path must be an absolute path (e.g., /home/user/...).",
		"RCON Password is required.",
		"Game Port must be a valid number.",
		"Query Port must be between 1 and 65535.",
		"Max Players must be a positive number.",
	}
	if len(verr.Messages) != len(want)+1 {
		t.Fatalf("Expected %d messages, got %d: %v", len(want)+1, len(verr.Messages), verr.Messages)
	}
	for i, msg := range want {
		if verr.Messages[i] != msg {
			t.Errorf("Messages[%d] = %q, want %q", i, verr.Messages[i], msg)
		}
	}
	last := verr.Messages[len(verr.Messages)-1]
	if !strings.Contains(last, "tar, screen") {
		t.Errorf("Dependency message should name tar and screen together: %q", last)
	}
	if !errors.Is(err, domain.ErrDependencyMissing) || !errors.Is(err, domain.ErrValidation) {
		t.Errorf("Expected error to match ErrValidation and ErrDependencyMissing")
	}
}

func TestValidateRequiredFields(t *testing.T) {
	raw := validRequest()
	raw.Name = ""
	raw.BasePath = ""
	raw.MaxPlayers = "many"

	_, err := New(allTools()).Validate(raw)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	want := []string{
		"Server Name is required.",
		"Base Installation Path is required.",
		"Max Players must be a valid number.",
	}
	if strings.Join(verr.Messages, "|") != strings.Join(want, "|") {
		t.Errorf("Messages = %v, want %v", verr.Messages, want)
	}
	if errors.Is(err, domain.ErrDependencyMissing) {
		t.Error("No dependency was missing")
	}
}

func TestCheckDependenciesPrefersWget(t *testing.T) {
	look := allTools()
	report := New(look).CheckDependencies()

	if report.Downloader != "wget" {
		t.Errorf("Downloader = %q, want wget", report.Downloader)
	}
	for _, name := range look.looked {
		if name == "curl" {
			t.Error("curl must not be looked up when wget is present")
		}
	}
}

func TestCheckDependenciesFallsBackToCurl(t *testing.T) {
	look := &fakeLooker{present: map[string]bool{"curl": true, "tar": true, "screen": true}}
	report := New(look).CheckDependencies()

	if report.Downloader != "curl" {
		t.Errorf("Downloader = %q, want curl", report.Downloader)
	}
	if len(report.Missing) != 0 {
		t.Errorf("Missing = %v, want none", report.Missing)
	}
}

func TestCheckDependenciesAllMissing(t *testing.T) {
	report := New(&fakeLooker{}).CheckDependencies()

	want := []string{"wget or curl", "tar", "screen"}
	if strings.Join(report.Missing, ",") != strings.Join(want, ",") {
		t.Errorf("Missing = %v, want %v", report.Missing, want)
	}
	if !strings.Contains(report.Message(), "sudo apt install") {
		t.Errorf("Message lacks remediation hint: %q", report.Message())
	}
}

func TestValidateRejectsControlCharactersInSecret(t *testing.T) {
	for _, secret := range []string{"x\nPort=1", "x\r", "tab\tbed"} {
		raw := validRequest()
		raw.RconSecret = secret

		_, err := New(allTools()).Validate(raw)
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("Secret %q: expected ValidationError, got %v", secret, err)
		}
		if len(verr.Fields["rconSecret"]) != 1 || len(verr.Messages) != 1 {
			t.Errorf("Secret %q: unexpected errors %v", secret, verr.Messages)
		}
	}

	raw := validRequest()
	raw.RconSecret = "p@ss wörd!"
	if _, err := New(allTools()).Validate(raw); err != nil {
		t.Errorf("Printable secret rejected: %v", err)
	}
}
