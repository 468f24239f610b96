package ws

import (
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Command
		wantErr bool
	}{
		{name: "timer", input: "Timer", want: TimerCommand{}},
		{name: "start session", input: "start_party_session", want: StartCommand{}},
		{name: "plain vote", input: "7dGJo4pcD2hiNTVSEOAQUF", want: VoteCommand{SongID: "7dGJo4pcD2hiNTVSEOAQUF"}},
		{name: "vote that looks like a word", input: "timer", want: VoteCommand{SongID: "timer"}},
		{name: "empty", input: "", wantErr: true},
		{name: "broken json", input: `{"button": `, wantErr: true},
		{name: "json without button", input: `{"song": "abc"}`, wantErr: true},
		{name: "button missing value", input: `{"button": "button1"}`, wantErr: true},
		{name: "button empty name", input: `{"button": "", "button_val": 3}`, wantErr: true},
		{name: "button bool value", input: `{"button": "button1", "button_val": true}`, wantErr: true},
		{name: "button non-numeric string", input: `{"button": "button1", "button_val": "lots"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseCommand(%q) = %v, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCommand(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseCommand(%q) = %#v, want %#v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseIncrementValues(t *testing.T) {
	tests := []struct {
		name  string
		input string
		value int
	}{
		{name: "numeric value", input: `{"button": "button1", "button_val": 3}`, value: 3},
		{name: "string value", input: `{"button": "button1", "button_val": "12"}`, value: 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCommand([]byte(tt.input))
			if err != nil {
				t.Fatalf("ParseCommand(%q): %v", tt.input, err)
			}
			inc, ok := got.(IncrementCommand)
			if !ok {
				t.Fatalf("ParseCommand(%q) = %#v, want IncrementCommand", tt.input, got)
			}
			if inc.Button != "button1" || inc.Value != tt.value {
				t.Errorf("parsed %s/%d, want button1/%d", inc.Button, inc.Value, tt.value)
			}
			if inc.Payload["button"] != "button1" {
				t.Error("payload should keep the decoded object")
			}
		})
	}
}
