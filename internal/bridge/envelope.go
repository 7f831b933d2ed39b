package bridge

import "encoding/json"

// Envelope types on the engine link. Everything that is not a command
// result is an unsolicited push.
const (
	envelopeCommand       = "command"
	envelopeCommandResult = "command_result"
	envelopeSceneGraph    = "scene_graph_update"
	envelopeSelection     = "selection_changed"
	envelopeProjectInfo   = "project_info"
)

// Push snapshot channels readable through Snapshot.
const (
	ChannelSceneGraph  = "scene_graph"
	ChannelSelection   = "selection"
	ChannelProjectInfo = "project_info"
)

// envelope is the wire frame in both directions. Outbound command frames
// use Type/RequestID/Name/Payload; inbound results use RequestID with
// either Result or Error; pushes carry Data.
type envelope struct {
	Type      string          `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Name      string          `json:"name,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func decodeEnvelope(data []byte) (envelope, bool) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, false
	}
	if env.Type == "" {
		return envelope{}, false
	}
	return env, true
}

// pushChannel maps a push envelope type to its snapshot channel.
func pushChannel(envType string) (string, bool) {
	switch envType {
	case envelopeSceneGraph:
		return ChannelSceneGraph, true
	case envelopeSelection:
		return ChannelSelection, true
	case envelopeProjectInfo:
		return ChannelProjectInfo, true
	default:
		return "", false
	}
}

// Channels returns the known push snapshot channels.
func Channels() []string {
	return []string{ChannelSceneGraph, ChannelSelection, ChannelProjectInfo}
}
