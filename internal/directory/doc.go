// Package directory caches the controller's rooms and devices.
//
// A refresh always reloads rooms first and then devices, because devices
// are linked to rooms by id. Each refresh builds new maps and swaps them
// in whole, so readers see either the previous snapshot or the new one and
// never a mix. Devices whose room cannot be resolved are left out.
//
// Every device gets one or more slug identifiers (see package identifier):
// "room/category/name" for each category the device declares, or
// "room/name" when it declares none.
//
// Devices that show up in events but are not visible to the configured
// user are remembered as "unknown-no-access" placeholders, so the event
// engine does not refresh the directory again for them.
package directory
