package handlers

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"roundup/internal/config"
)

func TestRunDigestEmptyRunStillRendersDigest(t *testing.T) {
	cfg := &config.Config{}
	cfg.Processing.EnableConfluence = false
	cfg.Processing.EnableZulip = false

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	var out bytes.Buffer
	cmd.SetOut(&out)

	if err := runDigest(cmd, cfg, true); err != nil {
		t.Fatalf("runDigest: %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "Community Digest") {
		t.Errorf("quiet run did not render a digest:\n%s", text)
	}
	for _, section := range []string{"Confluence Updates", "Zulip Discussions"} {
		if !strings.Contains(text, section) {
			t.Errorf("digest missing section %q:\n%s", section, text)
		}
	}
	if strings.Count(text, "No updates.") != 2 {
		t.Errorf("empty sections not marked:\n%s", text)
	}
}
