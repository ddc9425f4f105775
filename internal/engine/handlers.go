package engine

import (
	"context"
	"encoding/json"

	"courier/internal/queue"
	"courier/internal/remote"
	"courier/internal/services"
	"courier/internal/transcode"
)

// evidencePayload is the wire shape of photo-kind payloads: the captured
// image plus the evidence record posted to the backend after the upload.
type evidencePayload struct {
	Photo  []byte          `json:"photo"`
	Record json.RawMessage `json:"record,omitempty"`
}

// DefaultHandlers builds the production handler table: photo kinds transcode
// then upload to the item's pre-signed destination, action kinds write
// directly to the backend.
func DefaultHandlers(transcoder *transcode.Transcoder, writer *remote.Writer) Handlers {
	return Handlers{
		queue.KindDeliveryEvidence:    evidenceHandler(transcoder, writer, writer.RecordDeliveryEvidence),
		queue.KindNonDeliveryEvidence: evidenceHandler(transcoder, writer, writer.RecordNonDeliveryEvidence),
		queue.KindDeliveryStatus: func(ctx context.Context, item *queue.Item) error {
			return writer.SetDeliveryStatus(ctx, item.Payload)
		},
		queue.KindRouteStart: func(ctx context.Context, item *queue.Item) error {
			return writer.StartRoute(ctx, item.Payload)
		},
		queue.KindRouteStop: func(ctx context.Context, item *queue.Item) error {
			return writer.StopRoute(ctx, item.Payload)
		},
		queue.KindLicenseSet: func(ctx context.Context, item *queue.Item) error {
			return writer.SetLicense(ctx, item.Payload)
		},
	}
}

func evidenceHandler(transcoder *transcode.Transcoder, writer *remote.Writer, record func(context.Context, json.RawMessage) error) HandlerFunc {
	return func(ctx context.Context, item *queue.Item) error {
		var payload evidencePayload
		if err := json.Unmarshal(item.Payload, &payload); err != nil {
			return services.Wrap(services.ErrValidation, "engine", "evidence", "malformed evidence payload", err)
		}

		data, _, err := transcoder.Transcode(payload.Photo)
		if err != nil {
			return err
		}
		if err := writer.UploadPhoto(ctx, item.Destination, data); err != nil {
			return err
		}
		if len(payload.Record) > 0 {
			return record(ctx, payload.Record)
		}
		return nil
	}
}
