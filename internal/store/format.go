package store

import (
	"strconv"

	"codeberg.org/mutker/sysmon/internal/metric"
)

// FormatRecord renders m as a record line without the trailing newline:
// "ts,CPU,value", "ts,MEM,value", "ts,DISK,v1,v2" or "ts,NET,v1,v2".
func FormatRecord(m metric.Metric) string {
	b := make([]byte, 0, 48)
	b = strconv.AppendInt(b, m.Millis(), 10)
	b = append(b, ',')
	b = append(b, m.Kind.String()...)
	b = append(b, ',')

	switch m.Kind {
	case metric.DISK, metric.NET:
		b = strconv.AppendFloat(b, m.V1, 'f', 0, 64)
		b = append(b, ',')
		b = strconv.AppendFloat(b, m.V2, 'f', 0, 64)
	default:
		b = strconv.AppendFloat(b, m.V1, 'f', 2, 64)
	}

	return string(b)
}

// FormatAlert renders the alert record raised by m: "ts,ALERT,CPU_HIGH,value".
func FormatAlert(m metric.Metric) string {
	b := make([]byte, 0, 48)
	b = strconv.AppendInt(b, m.Millis(), 10)
	b = append(b, ",ALERT,"...)
	b = append(b, m.Kind.String()...)
	b = append(b, "_HIGH,"...)
	b = strconv.AppendFloat(b, m.V1, 'f', 2, 64)

	return string(b)
}
