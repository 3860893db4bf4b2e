// Package realtime is the wire client for the streaming interview agent.
//
// The agent speaks a realtime JSON-over-WebSocket protocol. The client sends
// four kinds of messages:
//
//	configure        session.update with audio format and turn detection
//	audioAppend      input_audio_buffer.append with base64 PCM
//	createTextItem   conversation.item.create with a user text message
//	requestResponse  response.create
//
// and decodes inbound messages into a closed set of Event types:
// ConfigAcknowledged, TranscriptDelta, TranscriptDone, UserTranscriptDone,
// AudioDelta, ErrorEvent and Lifecycle. Message kinds outside that set are
// rejected with ErrUnknownEvent rather than ignored.
//
// # Usage
//
//	client := realtime.NewClient(apiKey, realtime.WithURL(url))
//	conn, err := client.Connect(ctx)
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	err = conn.Configure(&realtime.SessionConfig{
//	    Voice:         realtime.VoiceAlloy,
//	    TurnDetection: &realtime.TurnDetection{Type: realtime.VADServerVAD},
//	})
//
//	for event, err := range conn.Events() {
//	    if err != nil {
//	        if errors.Is(err, realtime.ErrUnknownEvent) {
//	            continue
//	        }
//	        return err
//	    }
//	    switch e := event.(type) {
//	    case *realtime.AudioDelta:
//	        play(e.Audio)
//	    case *realtime.TranscriptDone:
//	        fmt.Println(e.Transcript)
//	    }
//	}
package realtime
