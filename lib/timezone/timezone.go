package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Europe/Moscow")
	if err != nil {
		panic(err)
	}
}

// force the market timezone regardless of where the daemon is deployed,
// the catalog lists prices in Moscow time and "last check" timestamps
// shown to users should agree with it
func Now() time.Time {
	return time.Now().In(Location)
}
