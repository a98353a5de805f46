package hostabi

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/OCAP2/killcam/internal/dispatcher"
)

// respond runs command through the dispatcher and encodes the reply.
// A command without args may carry them inline as "command|arg|arg".
func respond(d *dispatcher.Dispatcher, command string, args []string) string {
	if command == ":TIMESTAMP:" {
		return formatResponse(fmt.Sprintf("%d", time.Now().UTC().UnixNano()), nil)
	}
	if d == nil {
		return formatResponse(nil, fmt.Errorf("%s: extension not initialized", command))
	}

	if args == nil && !d.HasHandler(command) {
		if name, rest, ok := strings.Cut(command, "|"); ok && d.HasHandler(name) {
			command = name
			args = strings.Split(rest, "|")
		}
	}

	if !d.HasHandler(command) {
		return formatResponse(nil, fmt.Errorf("%s: no handler registered", command))
	}

	result, err := d.Dispatch(dispatcher.Event{
		Command:   command,
		Args:      args,
		Timestamp: time.Now(),
	})
	return formatResponse(result, err)
}

// fillReply writes response into buf as a NUL-terminated string. A reply
// that does not fit is truncated and the last byte of buf terminates it.
func fillReply(buf []byte, response string) {
	if len(buf) == 0 {
		return
	}
	n := copy(buf[:len(buf)-1], response)
	buf[n] = 0
}

// formatResponse encodes a dispatcher result as the host reply array:
// ["ok"], ["ok", <json>] or ["error", "<message>"].
func formatResponse(result any, err error) string {
	if err != nil {
		msg, _ := json.Marshal(err.Error())
		return fmt.Sprintf(`["error", %s]`, msg)
	}
	if result == nil {
		return `["ok"]`
	}
	data, err := json.Marshal(result)
	if err != nil {
		msg, _ := json.Marshal(fmt.Sprintf("encode reply: %v", err))
		return fmt.Sprintf(`["error", %s]`, msg)
	}
	return fmt.Sprintf(`["ok", %s]`, data)
}
