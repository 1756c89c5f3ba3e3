package storeutil

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
)

var byteUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}

// FormatBytes renders a byte count with base-1024 units and up to the given
// number of decimal places, trailing zeros trimmed. Exact zero is "0 Bytes".
func FormatBytes(bytes int64, decimals int) string {
	if bytes == 0 {
		return "0 Bytes"
	}
	if decimals < 0 {
		decimals = 0
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(byteUnits) {
		i = len(byteUnits) - 1
	}
	pow := math.Pow(10, float64(decimals))
	value := math.Round(float64(bytes)/math.Pow(1024, float64(i))*pow) / pow
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + byteUnits[i]
}

// GenerateID returns a unique id for locally created records.
func GenerateID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// ProgressID builds the composite key for progress records.
func ProgressID(courseID, lessonID string) string {
	return courseID + "-" + lessonID
}
