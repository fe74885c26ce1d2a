package gate

// MediaCategory classifies message media into the stable set consumed by
// listing, search, and download handlers.
type MediaCategory string

const (
	// MediaPhoto identifies native photo media.
	MediaPhoto MediaCategory = "photo"
	// MediaVideo identifies video documents.
	MediaVideo MediaCategory = "video"
	// MediaAudio identifies audio documents and voice notes.
	MediaAudio MediaCategory = "audio"
	// MediaImage identifies image documents sent as files.
	MediaImage MediaCategory = "image"
	// MediaDocument identifies generic file documents.
	MediaDocument MediaCategory = "document"
	// MediaVideoNote identifies round video recordings.
	MediaVideoNote MediaCategory = "video_note"
	// MediaLocation identifies geo point media.
	MediaLocation MediaCategory = "location"
	// MediaContact identifies shared contact cards.
	MediaContact MediaCategory = "contact"
	// MediaPoll identifies poll media.
	MediaPoll MediaCategory = "poll"
	// MediaUnknown is the degradation target for unrecognized media payloads.
	MediaUnknown MediaCategory = "unknown"
)

// MediaDescriptor is the normalized classification of a message's media.
//
// HasMedia false implies every other field is zero. Category is always set
// when HasMedia is true, defaulting to MediaUnknown rather than failing.
type MediaDescriptor struct {
	HasMedia bool          `json:"has_media"`
	Category MediaCategory `json:"media_category,omitempty"`
	MIMEType string        `json:"mime_type,omitempty"`
	FileName string        `json:"file_name,omitempty"`
}
