package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	envelope := NewEnvelope("Hey there! What are you building?")

	assert.Equal(t, "Hey there! What are you building?", envelope.Response)
	assert.NotNil(t, envelope.VideoLinks)
	assert.NotNil(t, envelope.RelatedProducts)
	assert.NotNil(t, envelope.URLs)
	assert.NotNil(t, envelope.Contexts)
	assert.NotNil(t, envelope.VideoTitles)
}

func TestEnvelopeJSONHasNoNulls(t *testing.T) {
	data, err := json.Marshal(NewEnvelope("hi"))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	for _, key := range []string{"video_links", "related_products", "urls", "contexts", "video_titles"} {
		require.Contains(t, decoded, key)
		assert.NotNil(t, decoded[key], key)
	}
}

func TestPairHistory(t *testing.T) {
	turns := PairHistory([]string{"hi", "Hey there!", "how do I joint a board?", "Start with the concave face down."})

	require.Len(t, turns, 2)
	assert.Equal(t, ChatTurn{User: "hi", Assistant: "Hey there!"}, turns[0])
	assert.Equal(t, "how do I joint a board?", turns[1].User)
}

func TestPairHistoryDanglingTurn(t *testing.T) {
	turns := PairHistory([]string{"hi", "Hey there!", "one more question"})

	require.Len(t, turns, 2)
	assert.Equal(t, ChatTurn{User: "one more question", Assistant: ""}, turns[1])
}

func TestPairHistoryEmpty(t *testing.T) {
	assert.Empty(t, PairHistory(nil))
	assert.Empty(t, PairHistory([]string{}))
}
