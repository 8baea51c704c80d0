package http

import (
	"github.com/vovakirdan/oinkroom/internal/core"
	"github.com/vovakirdan/oinkroom/internal/proto"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeOink:
		// Any payload is ignored; the hub generates the action server-side.
		return &core.Command{Kind: core.CommandAction}, nil
	case proto.InboundTypeHello:
		return nil, &proto.Error{Code: proto.ErrCodeBadRequest, Msg: "already authenticated"}
	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventUserConnected:
		var user proto.User
		if event.User != nil {
			user = userToProto(*event.User)
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserConnected,
			Data:  user,
		}
	case core.EventUserDisconnected:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserDisconnected,
			Data:  event.UserID,
		}
	case core.EventUserList:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserList,
			Data:  usersToProto(event.Users),
		}
	case core.EventAction:
		var data proto.EventOinkData
		if a := event.Action; a != nil {
			data = proto.EventOinkData{
				UserID: a.UserID,
				Sound:  a.Sound,
				Pig: proto.Pig{
					ID:       a.Pig.ID,
					X:        a.Pig.X,
					Y:        a.Pig.Y,
					Turn:     a.Pig.Turn,
					Distance: a.Pig.Distance,
				},
			}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventOink,
			Data:  data,
		}
	case core.EventError:
		out := proto.Outbound{Type: proto.OutboundTypeError}
		if event.Error != nil {
			out.Error = &proto.Error{Code: event.Error.Code, Msg: event.Error.Message}
		}
		return out
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent, Event: event.Kind.String()}
	}
}

func userToProto(u core.User) proto.User {
	return proto.User{
		ID:         u.ID,
		Username:   u.Username,
		GlobalName: u.DisplayName,
		Avatar:     u.Avatar,
	}
}

func usersToProto(users []core.User) []proto.User {
	out := make([]proto.User, 0, len(users))
	for _, u := range users {
		out = append(out, userToProto(u))
	}
	return out
}
