package hms

// CancelledByUser is the code a printer raises when an operator cancels a
// print. It surfaces as an error but is never worth a notification.
const CancelledByUser = "0300-400C"

// DefaultIgnored returns the built-in ignore list.
func DefaultIgnored() []string {
	return []string{NoError, CancelledByUser}
}

// amsUnits expands a code suffix across AMS units A through D, which the
// printer reports with module prefixes 0700, 0701, 0702 and 0703.
func amsUnits(suffix string) []string {
	return []string{"0700-" + suffix, "0701-" + suffix, "0702-" + suffix, "0703-" + suffix}
}

// DefaultTable returns the built-in lookup table. Callers get a fresh
// slice each time.
func DefaultTable() []Entry {
	return []Entry{
		// Motion and homing.
		{Codes: []string{"0300-4000"}, Description: "Printing was stopped because homing Z axis failed."},
		{Codes: []string{"0300-4001"}, Description: "The printer timed out waiting for the nozzle to cool down before homing."},
		{Codes: []string{"0300-4002"}, Description: "Printing stopped because Auto Bed Leveling failed."},
		{Codes: []string{"0300-400A"}, Description: "Mechanical resonance frequency identification failed."},
		{Codes: []string{"0300-400E"}, Description: "The motor self-check failed."},
		{Codes: []string{"0300-800C"}, Description: "Skipped step detected, auto-recover complete."},

		// Toolhead.
		{Codes: []string{"0300-4005"}, Description: "The nozzle fan speed is abnormal."},
		{Codes: []string{"0300-4006"}, Description: "The nozzle is clogged."},
		{Codes: []string{"0300-8005"}, Description: "The toolhead front cover fell off."},
		{Codes: []string{"0300-8008"}, Description: "Printing stopped because of a nozzle temperature problem."},
		{Codes: []string{"0300-8010"}, Description: "The hotend fan speed is abnormal."},
		{Codes: []string{"0300-801E"}, Description: "The extruder motor is overloaded."},
		{Codes: []string{"0300-800B"}, Description: "The cutter is stuck."},

		// Bed and print quality.
		{Codes: []string{"0300-8002"}, Description: "First layer defects were detected by the Micro Lidar."},
		{Codes: []string{"0300-8003"}, Description: "Spaghetti defects were detected by AI Print Monitoring."},
		{Codes: []string{"0300-800A"}, Description: "Filament pile-up was detected by AI Print Monitoring."},
		{Codes: []string{"0300-800D"}, Description: "Some objects have fallen down, or the extruder is not extruding normally."},
		{Codes: []string{"0300-8006"}, Description: "The build plate marker was not detected."},
		{Codes: []string{"0300-8009"}, Description: "Heatbed temperature malfunction."},

		// Job lifecycle.
		{Codes: []string{"0300-8000"}, Description: "Printing was paused for an unknown reason."},
		{Codes: []string{"0300-8001"}, Description: "Printing was paused by the user."},
		{Codes: []string{"0300-8004"}, Description: "Filament ran out. Please load new filament."},
		{Codes: []string{"0300-8007"}, Description: "There was an unfinished print job when the printer lost power."},
		{Codes: []string{"0300-400D"}, Description: "Resume failed after power loss."},
		{Codes: []string{"0300-400B", "0500-400B"}, Description: "Internal communication exception."},
		{Codes: []string{"0300-800E", "0500-8013"}, Description: "The print file is not available. Check whether the storage media was removed."},

		// Network and files.
		{Codes: []string{"0500-4001"}, Description: "Failed to connect to Bambu Cloud."},
		{Codes: []string{"0500-4002"}, Description: "Unsupported print file path or name."},
		{Codes: []string{"0500-4003"}, Description: "Printing stopped because the printer was unable to parse the file."},
		{Codes: []string{"0500-4004"}, Description: "The printer can't receive new print jobs while printing."},

		// AMS.
		{Codes: amsUnits("8001"), Description: "AMS failed to cut the filament."},
		{Codes: amsUnits("8002"), Description: "The AMS cutter is stuck."},
		{Codes: amsUnits("8003"), Description: "AMS failed to pull filament out of the extruder."},
		{Codes: amsUnits("8004"), Description: "AMS failed to pull back filament."},
		{Codes: amsUnits("8005"), Description: "AMS failed to send out filament."},
		{Codes: amsUnits("8006"), Description: "Unable to feed filament into the extruder."},
		{Codes: amsUnits("8007"), Description: "Extruding filament failed."},
		{Codes: amsUnits("8010"), Description: "The AMS assist motor is overloaded."},
	}
}
