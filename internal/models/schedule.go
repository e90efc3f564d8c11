package models

// dayNames maps ISO weekday numbers (Monday=1) to Indonesian names.
var dayNames = [...]string{"", "Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu", "Minggu"}

// DayName returns the Indonesian name for day 1..7, or "" when out of range.
func DayName(day int) string {
	if day < 1 || day > 7 {
		return ""
	}
	return dayNames[day]
}
