package mailer

import (
	"strings"
	"testing"
	"time"
)

func TestBuild(t *testing.T) {
	msg := &Message{
		From:    "Alumni Network <network@alumni.example>",
		ReplyTo: "creator@alumni.example",
		To:      "a@x.com",
		Subject: "New job: Backend Engineer",
		HTML:    "<p>Apply <a href=\"https://jobs.example/1\">here</a></p>",
	}

	data, err := Build(msg, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	s := string(data)

	for _, want := range []string{
		"Subject: New job: Backend Engineer",
		"Reply-To:",
		"creator@alumni.example",
		"Message-Id:",
		"multipart/alternative",
		"text/plain",
		"text/html",
		"Apply here (https://jobs.example/1)",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("built message missing %q", want)
		}
	}
}

func TestBuild_NoReplyTo(t *testing.T) {
	msg := &Message{
		From:    "network@alumni.example",
		To:      "a@x.com",
		Subject: "Hi",
		Text:    "plain only",
	}
	data, err := Build(msg, time.Now())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	s := string(data)
	if strings.Contains(s, "Reply-To:") {
		t.Error("unexpected Reply-To header")
	}
	if strings.Contains(s, "text/html") {
		t.Error("unexpected html part for text-only message")
	}
	if !strings.Contains(s, "plain only") {
		t.Error("missing text body")
	}
}

func TestBuild_InvalidAddress(t *testing.T) {
	_, err := Build(&Message{From: "network@alumni.example", To: "not an address"}, time.Now())
	if err == nil {
		t.Fatal("Build() expected error")
	}
	if IsTemporary(err) {
		t.Error("invalid address should be permanent")
	}
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"empty", "", ""},
		{"plain", "hello", "hello"},
		{"paragraphs", "<p>Hello</p><p>World</p>", "Hello\n\nWorld"},
		{"line break", "a<br>b", "a\nb"},
		{"entities", "Tom &amp; Jerry", "Tom & Jerry"},
		{"script dropped", "<script>alert(1)</script>ok", "ok"},
		{"list", "<ul><li>one</li><li>two</li></ul>", "- one\n- two"},
		{"link", `<a href="https://x.test">site</a>`, "site (https://x.test)"},
		{"anchor link", `<a href="#top">top</a>`, "top"},
		{"whitespace", "<div>  lots   of\n   space </div>", "lots of\nspace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTMLToText(tt.html); got != tt.want {
				t.Errorf("HTMLToText(%q) = %q, want %q", tt.html, got, tt.want)
			}
		})
	}
}
