package telegram

import (
	"strings"

	"tggate/pkg/gate"

	"github.com/gotd/td/tg"
)

// Classify maps any provider media payload into the normalized descriptor.
// It is total: unrecognized payloads come back as MediaUnknown rather than
// an error, and nil media means no media at all.
func Classify(media tg.MessageMediaClass) gate.MediaDescriptor {
	if media == nil {
		return gate.MediaDescriptor{}
	}
	if _, ok := media.(*tg.MessageMediaEmpty); ok {
		return gate.MediaDescriptor{}
	}

	desc := gate.MediaDescriptor{HasMedia: true, Category: gate.MediaUnknown}

	switch typed := media.(type) {
	case *tg.MessageMediaPhoto:
		desc.Category = gate.MediaPhoto
	case *tg.MessageMediaDocument:
		classifyDocument(typed, &desc)
	case *tg.MessageMediaGeo, *tg.MessageMediaGeoLive, *tg.MessageMediaVenue:
		desc.Category = gate.MediaLocation
	case *tg.MessageMediaContact:
		desc.Category = gate.MediaContact
	case *tg.MessageMediaPoll:
		desc.Category = gate.MediaPoll
	}

	return desc
}

func classifyDocument(media *tg.MessageMediaDocument, desc *gate.MediaDescriptor) {
	raw, ok := media.GetDocument()
	if !ok {
		return
	}
	document, ok := raw.AsNotEmpty()
	if !ok {
		return
	}

	desc.MIMEType = document.MimeType
	desc.Category = categoryForMIME(document.MimeType)

	var (
		round      bool
		audioTitle string
	)
	for _, attr := range document.Attributes {
		switch typed := attr.(type) {
		case *tg.DocumentAttributeVideo:
			if typed.RoundMessage {
				round = true
			}
		case *tg.DocumentAttributeAudio:
			if title, ok := typed.GetTitle(); ok && title != "" {
				audioTitle = title
			}
		case *tg.DocumentAttributeFilename:
			desc.FileName = typed.FileName
		}
	}

	// The round recording attribute overrides the MIME-derived category.
	if round {
		desc.Category = gate.MediaVideoNote
	}

	if desc.Category == gate.MediaAudio && desc.FileName == "" && audioTitle != "" {
		desc.FileName = audioTitle + ".mp3"
	}
}

func categoryForMIME(mimeType string) gate.MediaCategory {
	switch {
	case strings.HasPrefix(mimeType, "video/"):
		return gate.MediaVideo
	case strings.HasPrefix(mimeType, "audio/"), mimeType == "application/ogg":
		return gate.MediaAudio
	case strings.HasPrefix(mimeType, "image/"):
		return gate.MediaImage
	default:
		return gate.MediaDocument
	}
}
