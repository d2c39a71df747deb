package prompt

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRequest() Request {
	return Request{
		Subject:      "扫地机器人",
		Operation:    "开始扫地",
		Style:        StyleFormal,
		Examples:     []string{"Start cleaning", "Clean the {room}"},
		SlotGlossary: "{room}: a room in the house, e.g. kitchen",
		Count:        5,
		ExtraContext: "Avoid brand names.",
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	req := sampleRequest()

	first, err := Build(req)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Build(req)
		require.NoError(t, err)
		assert.Equal(t, first.Text, again.Text)
	}
}

func TestBuildInterpolatesAllFields(t *testing.T) {
	p, err := Build(sampleRequest())
	require.NoError(t, err)

	assert.Contains(t, p.Text, "A 扫地机器人 app has a voice assistant feature")
	assert.Contains(t, p.Text, `perform the operation "开始扫地."`)
	assert.Contains(t, p.Text, "Spoken style: Formal.")
	assert.Contains(t, p.Text, `phrases: ["Start cleaning","Clean the {room}"]`)
	assert.Contains(t, p.Text, "{room}: a room in the house, e.g. kitchen")
	assert.Contains(t, p.Text, "Please generate 5 phrases on each run.")
	assert.True(t, strings.HasSuffix(p.Text, "Avoid brand names."))
	assert.Equal(t, StyleFormal, p.Style)
	assert.Equal(t, 5, p.Count)
}

func TestBuildSectionOrder(t *testing.T) {
	p, err := Build(sampleRequest())
	require.NoError(t, err)

	prefixAt := strings.Index(p.Text, "Examples as below:")
	examplesAt := strings.Index(p.Text, "phrases: [")
	suffixAt := strings.Index(p.Text, "The curly braces {} in the example are placeholders")
	require.True(t, prefixAt >= 0 && examplesAt >= 0 && suffixAt >= 0)
	assert.Less(t, prefixAt, examplesAt)
	assert.Less(t, examplesAt, suffixAt)
}

func TestBuildKeepsPlaceholdersUnescaped(t *testing.T) {
	req := sampleRequest()
	req.Examples = []string{"Set {time} alarm", "Turn <on> & {device}"}

	p, err := Build(req)
	require.NoError(t, err)

	assert.Contains(t, p.Text, "{time}")
	assert.Contains(t, p.Text, "Turn <on> & {device}")
	assert.NotContains(t, p.Text, `\u003c`)
	assert.NotContains(t, p.Text, `\u0026`)
}

func TestBuildZeroShot(t *testing.T) {
	req := sampleRequest()
	req.Examples = nil

	p, err := Build(req)
	require.NoError(t, err)
	assert.Contains(t, p.Text, "phrases: []")

	req.Examples = []string{}
	p2, err := Build(req)
	require.NoError(t, err)
	assert.Equal(t, p.Text, p2.Text)
}

func TestBuildRejectsUnknownStyle(t *testing.T) {
	req := sampleRequest()
	req.Style = Style("poetic")

	_, err := Build(req)
	var styleErr *UnknownStyleError
	require.True(t, errors.As(err, &styleErr))
	assert.Equal(t, "poetic", styleErr.Label)
}

func TestSplitExamples(t *testing.T) {
	got := SplitExamples("  Start cleaning \n\n begin cleaning\r\n   \n")
	assert.Equal(t, []string{"Start cleaning", "begin cleaning"}, got)
	assert.Nil(t, SplitExamples("  \n "))
}
