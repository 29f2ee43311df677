package repositories

import "time"

// nowUTC is the timestamp source for rows written by the repositories.
var nowUTC = func() time.Time { return time.Now().UTC() }
