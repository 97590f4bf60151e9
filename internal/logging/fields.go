package logging

import "log/slog"

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

func Conn(id string) slog.Attr {
	return slog.String("conn_id", id)
}

func EventType(t string) slog.Attr {
	return slog.String("event_type", t)
}

func Transport(name string) slog.Attr {
	return slog.String("transport", name)
}

func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

func UserID(id string) slog.Attr {
	return slog.String("user_id", id)
}

func ChatID(id string) slog.Attr {
	return slog.String("chat_id", id)
}
