package bgen

import (
	"fmt"
	"time"
)

// Time exists to facilitate time parsing from the Metadata, because .bgi
// files in the wild use both unixtime and text strings to represent time.
type Time time.Time

func (t *Time) Scan(v interface{}) error {
	switch which := v.(type) {
	case int64:
		*t = Time(time.Unix(which, 0))
		return nil
	case int:
		*t = Time(time.Unix(int64(which), 0))
		return nil
	case []byte:
		vt, err := time.Parse("2006-01-02 15:04:05", string(which))
		if err != nil {
			return err
		}
		*t = Time(vt)
		return nil
	case string:
		vt, err := time.Parse("2006-01-02 15:04:05", which)
		if err != nil {
			return err
		}
		*t = Time(vt)
		return nil
	}

	return fmt.Errorf("no appropriate type could be found to decode %v", v)
}

func (t Time) Unix() int64 {
	return time.Time(t).Unix()
}
