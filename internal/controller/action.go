package controller

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// CallAction invokes an action on a device:
//
//	GET /api/callAction?deviceID=<id>&name=<action>&arg1=<v1>&arg2=<v2>...
//
// Arguments are formatted with fmt.Sprint. The call is one-shot; a failure
// is returned without retrying. The raw acknowledgement body is returned.
func (c *Channel) CallAction(ctx context.Context, deviceID int, action string, args ...any) ([]byte, error) {
	if deviceID <= 0 || action == "" {
		return nil, fmt.Errorf("%w: device %d action %q", ErrInvalidAction, deviceID, action)
	}
	return c.QueryRaw(ctx, ActionPath(deviceID, action, args...), false)
}

// ActionPath builds the callAction path with parameters in wire order.
func ActionPath(deviceID int, action string, args ...any) string {
	var b strings.Builder
	b.WriteString("/callAction?deviceID=")
	b.WriteString(strconv.Itoa(deviceID))
	b.WriteString("&name=")
	b.WriteString(url.QueryEscape(action))
	for i, arg := range args {
		b.WriteString("&arg")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(fmt.Sprint(arg)))
	}
	return b.String()
}
