package models

// Passage is one embedded transcript chunk with its source metadata.
// Passages are produced by ingestion and read-only everywhere else.
type Passage struct {
	ID      string
	ChunkID string
	Text    string
	Title   string
	URL     string
	Vector  []float32
}

// ScoredPassage pairs a passage with its similarity score for one query.
type ScoredPassage struct {
	Passage
	Score float64
}

// ChatTurn is one exchanged (user, assistant) pair of a conversation.
type ChatTurn struct {
	User      string
	Assistant string
}

// Product is a catalog entry matched against cited video titles.
type Product struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Tags     []string `json:"tags"`
	Link     string   `json:"link"`
	ImageURL string   `json:"image_url,omitempty"`
}

// VideoLink is the structured citation derived from one source marker
// in a generated answer.
type VideoLink struct {
	URLs        []string `json:"urls"`
	Timestamp   string   `json:"timestamp"`
	Description string   `json:"description"`
	VideoTitle  string   `json:"video_title"`
}

// Envelope is the single response shape returned for every chat request,
// including all degraded and failed outcomes.
type Envelope struct {
	Response        string               `json:"response"`
	VideoLinks      map[string]VideoLink `json:"video_links"`
	RelatedProducts []Product            `json:"related_products"`
	RawResponse     string               `json:"raw_response,omitempty"`
	URLs            []string             `json:"urls"`
	Contexts        []string             `json:"contexts"`
	VideoTitles     []string             `json:"video_titles"`
}

// NewEnvelope returns an envelope carrying only a response message, with
// every collection initialized so JSON clients never see null.
func NewEnvelope(response string) Envelope {
	return Envelope{
		Response:        response,
		VideoLinks:      map[string]VideoLink{},
		RelatedProducts: []Product{},
		URLs:            []string{},
		Contexts:        []string{},
		VideoTitles:     []string{},
	}
}

// PairHistory folds a flat alternating user/assistant sequence into turns.
// An odd trailing element becomes a dangling user turn with an empty reply.
func PairHistory(history []string) []ChatTurn {
	var turns []ChatTurn
	for i := 0; i < len(history); i += 2 {
		turn := ChatTurn{User: history[i]}
		if i+1 < len(history) {
			turn.Assistant = history[i+1]
		}
		turns = append(turns, turn)
	}
	return turns
}
