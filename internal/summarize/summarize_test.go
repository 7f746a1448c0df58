package summarize

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient("", DefaultModel, MeetingPromptTemplate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestPromptTemplatesHaveTwoVerbs(t *testing.T) {
	for name, tmpl := range map[string]string{
		"meeting": MeetingPromptTemplate,
		"topic":   TopicPromptTemplate,
	} {
		assert.Equal(t, 2, strings.Count(tmpl, "%s"), "template %s", name)

		rendered := fmt.Sprintf(tmpl, "LABEL", "TEXT")
		assert.NotContains(t, rendered, "%!", "template %s rendered with verb errors", name)
		assert.Contains(t, rendered, "LABEL")
		assert.Contains(t, rendered, "TEXT")
	}
}
