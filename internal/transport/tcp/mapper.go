package tcp

import (
	"github.com/vovakirdan/wirechat-tcp/internal/core"
	"github.com/vovakirdan/wirechat-tcp/internal/proto"
)

func messageData(msg core.Message, replay bool) proto.EventMessageData {
	return proto.EventMessageData{
		ID:      msg.ID,
		User:    msg.From,
		To:      msg.To,
		Text:    msg.Text,
		TS:      msg.CreatedAt.Unix(),
		History: replay,
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventWelcome:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventWelcome,
			Data:  proto.EventWelcomeData{User: event.User, JoinedAt: event.At.Unix()},
		}
	case core.EventHistory:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventHistory,
			Data:  proto.EventHistoryData{Count: event.Count},
		}
	case core.EventMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessage,
			Data:  messageData(event.Message, event.Replay),
		}
	case core.EventPrivate:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventPrivate,
			Data:  messageData(event.Message, false),
		}
	case core.EventPrivateSent:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventPrivateSent,
			Data:  messageData(event.Message, false),
		}
	case core.EventPeople:
		people := make([]proto.Peer, 0, len(event.People))
		for _, p := range event.People {
			people = append(people, proto.Peer{User: p.Username, JoinedAt: p.JoinedAt.Unix()})
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventPeople,
			Data:  proto.EventPeopleData{People: people},
		}
	case core.EventUserJoined:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserJoined,
			Data:  proto.EventPresence{User: event.User, TS: event.At.Unix()},
		}
	case core.EventUserLeft:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserLeft,
			Data:  proto.EventPresence{User: event.User, TS: event.At.Unix()},
		}
	case core.EventError:
		return errorOutbound(event.Error)
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func errorOutbound(ce *core.CoreError) proto.Outbound {
	if ce == nil {
		return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
	}
	return proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: ce.Code, Msg: ce.Message},
	}
}
