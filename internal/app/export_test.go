package app

// SubscribeForTest exposes subscribe to the external test package.
var SubscribeForTest = (*Session).subscribe
