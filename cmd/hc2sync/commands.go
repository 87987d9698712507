package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/hc2-sync/internal/directory"
	"github.com/nerrad567/hc2-sync/internal/events"
	"github.com/nerrad567/hc2-sync/internal/status"
)

func (a *app) newRoomsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rooms",
		GroupID: "inspect",
		Short:   "List the controller's rooms",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, out, err := a.oneShot()
			if err != nil {
				return err
			}
			defer client.Close()

			rooms, err := client.Rooms(cmd.Context())
			if err != nil {
				return err
			}
			if out.jsonOut {
				return out.emitJSON(map[string]any{"rooms": rooms, "count": len(rooms)})
			}

			rows := make([][]string, 0, len(rooms))
			for _, r := range rooms {
				rows = append(rows, []string{strconv.Itoa(r.ID), r.Name, r.Identifier})
			}
			out.table([]string{"ID", "NAME", "IDENTIFIER"}, rows)
			return nil
		},
	}
}

func (a *app) newDevicesCmd() *cobra.Command {
	var room string
	cmd := &cobra.Command{
		Use:     "devices",
		GroupID: "inspect",
		Short:   "List devices with their identifiers",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, out, err := a.oneShot()
			if err != nil {
				return err
			}
			defer client.Close()

			devices, err := client.Devices(cmd.Context())
			if err != nil {
				return err
			}
			if room != "" {
				devices = client.Directory().DevicesInRoom(room)
			}
			return printDevices(out, devices)
		},
	}
	cmd.Flags().StringVar(&room, "room", "", "only devices in this room identifier")
	return cmd
}

func (a *app) newIdentifiersCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "identifiers",
		GroupID: "inspect",
		Short:   "Print every device identifier",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, out, err := a.oneShot()
			if err != nil {
				return err
			}
			defer client.Close()

			if _, err := client.Devices(cmd.Context()); err != nil {
				return err
			}
			ids := client.Directory().Identifiers()
			if out.jsonOut {
				return out.emitJSON(ids)
			}
			for _, id := range ids {
				out.line("%s", id)
			}
			return nil
		},
	}
}

func (a *app) newActionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "actions [identifier]",
		GroupID: "inspect",
		Short:   "Show the actions devices accept",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, out, err := a.oneShot()
			if err != nil {
				return err
			}
			defer client.Close()

			var devices []directory.Device
			if len(args) == 1 {
				dev, err := client.DeviceByIdentifier(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				devices = []directory.Device{*dev}
			} else if devices, err = client.Devices(cmd.Context()); err != nil {
				return err
			}

			if out.jsonOut {
				result := make(map[string]map[string]any, len(devices))
				for _, d := range devices {
					result[deviceLabel(d)] = actionArities(d)
				}
				return out.emitJSON(result)
			}

			for _, d := range devices {
				out.heading(deviceLabel(d))
				for _, name := range d.ActionNames() {
					if n, ok := d.Arity(name); ok {
						out.line("  %s %s", name, out.gray.Sprintf("(%d args)", n))
					} else {
						out.line("  %s", name)
					}
				}
			}
			return nil
		},
	}
}

func (a *app) newPoweredCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "powered",
		GroupID: "inspect",
		Short:   "List devices that are switched on or drawing power",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, out, err := a.oneShot()
			if err != nil {
				return err
			}
			defer client.Close()

			devices, err := client.Devices(cmd.Context())
			if err != nil {
				return err
			}
			return printDevices(out, poweredDevices(devices))
		},
	}
}

func (a *app) newCallCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "call <identifier> <action> [args...]",
		GroupID: "inspect",
		Short:   "Invoke an action on a device",
		Example: "  hc2sync call kitchen/light setValue 55",
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, out, err := a.oneShot()
			if err != nil {
				return err
			}
			defer client.Close()

			callArgs := make([]any, 0, len(args)-2)
			for _, arg := range args[2:] {
				callArgs = append(callArgs, arg)
			}

			body, err := client.Call(cmd.Context(), args[0], args[1], callArgs...)
			if err != nil {
				return err
			}
			if out.jsonOut {
				return out.emitJSON(map[string]any{
					"identifier": args[0],
					"action":     args[1],
					"result":     string(body),
				})
			}
			out.line("%s %s %s", out.green.Sprint("ok"), args[0], args[1])
			if len(body) > 0 {
				out.line("%s", out.gray.Sprint(strings.TrimSpace(string(body))))
			}
			return nil
		},
	}
}

func (a *app) newEventsCmd() *cobra.Command {
	var (
		device     string
		properties []string
	)
	cmd := &cobra.Command{
		Use:     "events",
		GroupID: "inspect",
		Short:   "Stream property updates until interrupted",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, out, err := a.oneShot()
			if err != nil {
				return err
			}
			defer client.Close()
			defer client.Disconnect()

			ctx := cmd.Context()
			criteria := events.Criteria{Properties: properties}
			if device != "" {
				dev, err := client.DeviceByIdentifier(ctx, device)
				if err != nil {
					return err
				}
				criteria.DeviceID = dev.ID
			}

			unsubscribe := client.System(func(ev status.Event) {
				printStatus(out, ev)
			})
			defer unsubscribe()

			for ev := range client.Stream(ctx, criteria) {
				if err := printEvent(out, ev); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&device, "device", "", "only this device identifier")
	cmd.Flags().StringSliceVar(&properties, "property", nil, "only these properties (repeatable)")
	return cmd
}

func (a *app) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			out := newPrinter(a.stdout, a.opts.jsonOut, a.opts.noColor)
			if out.jsonOut {
				return out.emitJSON(map[string]string{"version": version, "commit": commit, "date": date})
			}
			out.line("hc2sync %s (commit %s, built %s)", version, commit, date)
			return nil
		},
	}
}

// poweredDevices keeps devices whose value is on or whose power reading
// is positive.
func poweredDevices(devices []directory.Device) []directory.Device {
	var out []directory.Device
	for _, d := range devices {
		if v, ok := d.Property("value"); ok && v.Truthy() {
			out = append(out, d)
			continue
		}
		if p, ok := d.Property("power"); ok {
			if watts, ok := p.Float(); ok && watts > 0 {
				out = append(out, d)
			}
		}
	}
	return out
}

func deviceLabel(d directory.Device) string {
	if len(d.Identifiers) > 0 {
		return d.Identifiers[0]
	}
	return fmt.Sprintf("%s (#%d)", d.Name, d.ID)
}

func actionArities(d directory.Device) map[string]any {
	out := make(map[string]any, len(d.Actions))
	for _, name := range d.ActionNames() {
		if n, ok := d.Arity(name); ok {
			out[name] = n
		} else {
			out[name] = nil
		}
	}
	return out
}

func printDevices(out *printer, devices []directory.Device) error {
	if out.jsonOut {
		if devices == nil {
			devices = []directory.Device{}
		}
		return out.emitJSON(map[string]any{"devices": devices, "count": len(devices)})
	}

	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		value := ""
		if v, ok := d.Property("value"); ok {
			value = v.Raw()
		}
		rows = append(rows, []string{
			strconv.Itoa(d.ID),
			d.Name,
			d.Room.Name,
			strings.Join(d.Identifiers, ", "),
			value,
		})
	}
	out.table([]string{"ID", "NAME", "ROOM", "IDENTIFIERS", "VALUE"}, rows)
	return nil
}

func printEvent(out *printer, ev events.Event) error {
	if out.jsonOut {
		return out.emitJSON(ev)
	}
	name := ev.Identifier()
	if name == "" {
		name = fmt.Sprintf("#%d", ev.ID)
	}
	out.line("%s %s %s: %s -> %s",
		out.gray.Sprint(ev.Timestamp.Format("15:04:05")),
		out.bold.Sprint(name),
		ev.Property,
		ev.OldValue.Raw(),
		out.green.Sprint(ev.NewValue.Raw()),
	)
	return nil
}

func printStatus(out *printer, ev status.Event) {
	if out.jsonOut {
		out.emitJSON(map[string]any{"system": ev}) //nolint:errcheck // best-effort status line
		return
	}
	switch ev.Type {
	case status.EventError:
		out.line("%s", out.red.Sprint("controller: "+ev.String()))
	case status.EventLast:
		out.line("%s", out.yellow.Sprint("controller restarted ("+ev.String()+")"))
	default:
		out.line("%s", out.green.Sprint("controller: "+ev.String()))
	}
}
