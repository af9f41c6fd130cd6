package mcp

import "testing"

func TestServerConfig_ValidateStdio(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ServerConfig
		wantErr bool
	}{
		{"valid", ServerConfig{Name: "fs", Transport: TransportStdio, Command: "mcp-server-fs"}, false},
		{"missing name", ServerConfig{Transport: TransportStdio, Command: "x"}, true},
		{"missing command", ServerConfig{Name: "fs", Transport: TransportStdio}, true},
		{"path traversal", ServerConfig{Name: "fs", Transport: TransportStdio, Command: "../../bin/sh"}, true},
		{"shell metachar in arg", ServerConfig{Name: "fs", Transport: TransportStdio, Command: "x", Args: []string{"a; rm -rf /"}}, true},
		{"unknown transport", ServerConfig{Name: "fs", Transport: "carrier-pigeon"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestServerConfig_ValidateSSE(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"http ok", "http://localhost:8080/mcp", false},
		{"https ok", "https://example.com/mcp", false},
		{"bad scheme", "ftp://example.com/mcp", true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ServerConfig{Name: "remote", Transport: TransportSSE, URL: tt.url}
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestQualifiedName_NormalizesDots(t *testing.T) {
	got := qualifiedName("filesystem.local", "read.file")
	want := "filesystem_local-read_file"
	if got != want {
		t.Fatalf("qualifiedName() = %q, want %q", got, want)
	}
}
