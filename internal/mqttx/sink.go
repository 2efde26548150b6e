package mqttx

import "context"

// Sink adapts a Client to notify.Sink, publishing each alert as a plain
// text message on the destination topic.
type Sink struct {
	Client *Client
}

func (s Sink) Publish(ctx context.Context, destination, text string) error {
	return s.Client.Publish(ctx, destination, text)
}

func (s Sink) Close() error {
	s.Client.Close()
	return nil
}
