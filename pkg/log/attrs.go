package log

import "log/slog"

func InstanceID[T ~string](id T) slog.Attr {
	return slog.String("instance_id", string(id))
}

func FlowNodeID[T ~string](id T) slog.Attr {
	return slog.String("flow_node_id", string(id))
}

func FlowNodeInstanceID[T ~string](id T) slog.Attr {
	return slog.String("flow_node_instance_id", string(id))
}

func TokenRef[T ~string](ref T) slog.Attr {
	return slog.String("token_ref", string(ref))
}

func Status[T ~string](status T) slog.Attr {
	return slog.String("status", string(status))
}

func Decision[T ~string](kind T) slog.Attr {
	return slog.String("decision", string(kind))
}

func Shape(shape string) slog.Attr {
	return slog.String("shape", shape)
}

func Error(err error) slog.Attr {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return slog.String("error", msg)
}

func ErrorString(msg string) slog.Attr {
	return slog.String("error", msg)
}
