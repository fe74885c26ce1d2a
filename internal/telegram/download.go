package telegram

import (
	"context"
	"fmt"
	"io"

	"tggate/pkg/gate"

	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"
)

// Download streams the media payload of one message into w and returns the
// media descriptor so callers can shape response headers before the body.
//
// Note: the descriptor is classified before streaming starts, so a handler
// can branch on the category without buffering the payload.
func (g *Gateway) Download(ctx context.Context, identifier string, messageID int, w io.Writer) (gate.MediaDescriptor, error) {
	api, err := g.api()
	if err != nil {
		return gate.MediaDescriptor{}, err
	}

	peer, _, err := g.resolveInput(ctx, identifier)
	if err != nil {
		return gate.MediaDescriptor{}, err
	}

	msg, err := fetchMessage(ctx, api, peer, messageID)
	if err != nil {
		return gate.MediaDescriptor{}, fmt.Errorf("download from %q: %w", identifier, err)
	}

	media, ok := msg.GetMedia()
	if !ok {
		return gate.MediaDescriptor{}, fmt.Errorf("download message %d: %w", messageID, gate.ErrNoMedia)
	}

	desc := Classify(media)
	location, err := fileLocation(media)
	if err != nil {
		return desc, fmt.Errorf("download message %d: %w", messageID, err)
	}

	d := downloader.NewDownloader()
	if _, err := d.Download(api, location).Stream(ctx, w); err != nil {
		return desc, fmt.Errorf("download message %d: %w", messageID, err)
	}
	return desc, nil
}

// fetchMessage loads one message by id, routing through the channel RPC when
// the peer requires it.
func fetchMessage(ctx context.Context, api *tg.Client, peer tg.InputPeerClass, messageID int) (*tg.Message, error) {
	input := []tg.InputMessageClass{&tg.InputMessageID{ID: messageID}}

	var (
		resp tg.MessagesMessagesClass
		err  error
	)
	if channel, ok := peer.(*tg.InputPeerChannel); ok {
		resp, err = api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
			Channel: &tg.InputChannel{
				ChannelID:  channel.ChannelID,
				AccessHash: channel.AccessHash,
			},
			ID: input,
		})
	} else {
		resp, err = api.MessagesGetMessages(ctx, input)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch message: %w", err)
	}

	modified, ok := resp.AsModified()
	if !ok {
		return nil, fmt.Errorf("fetch message: unexpected response %T", resp)
	}
	for _, raw := range modified.GetMessages() {
		if msg, ok := raw.(*tg.Message); ok && msg.ID == messageID {
			return msg, nil
		}
	}
	return nil, fmt.Errorf("fetch message %d: %w", messageID, gate.ErrNoMedia)
}

// fileLocation builds the download location for photo and document media.
func fileLocation(media tg.MessageMediaClass) (tg.InputFileLocationClass, error) {
	switch typed := media.(type) {
	case *tg.MessageMediaPhoto:
		raw, ok := typed.GetPhoto()
		if !ok {
			return nil, gate.ErrNoMedia
		}
		photo, ok := raw.AsNotEmpty()
		if !ok {
			return nil, gate.ErrNoMedia
		}
		return &tg.InputPhotoFileLocation{
			ID:            photo.ID,
			AccessHash:    photo.AccessHash,
			FileReference: photo.FileReference,
			ThumbSize:     largestPhotoSize(photo.Sizes),
		}, nil
	case *tg.MessageMediaDocument:
		raw, ok := typed.GetDocument()
		if !ok {
			return nil, gate.ErrNoMedia
		}
		document, ok := raw.AsNotEmpty()
		if !ok {
			return nil, gate.ErrNoMedia
		}
		return &tg.InputDocumentFileLocation{
			ID:            document.ID,
			AccessHash:    document.AccessHash,
			FileReference: document.FileReference,
		}, nil
	default:
		return nil, gate.ErrNoMedia
	}
}

// largestPhotoSize picks the thumb type of the biggest available size.
func largestPhotoSize(sizes []tg.PhotoSizeClass) string {
	best := ""
	bestBytes := -1
	for _, raw := range sizes {
		switch size := raw.(type) {
		case *tg.PhotoSize:
			if size.Size > bestBytes {
				best = size.Type
				bestBytes = size.Size
			}
		case *tg.PhotoSizeProgressive:
			total := 0
			for _, n := range size.Sizes {
				if n > total {
					total = n
				}
			}
			if total > bestBytes {
				best = size.Type
				bestBytes = total
			}
		}
	}
	return best
}
