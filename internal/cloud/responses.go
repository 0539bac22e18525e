package cloud

import "encoding/json"

// envelope is the vendor API response wrapper. Query endpoints carry
// code/data; command endpoints carry ok/msg.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	OK   *bool           `json:"ok"`
	Data json.RawMessage `json:"data"`
}

// Session is the token endpoint response. The vendor reuses the same
// shape for the password and refresh_token grants.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	UserID       int64  `json:"user_id"`
	Username     string `json:"username"`
}

// DeviceSummary is one entry of the account device list. Legacy
// accounts fill bluetoothMac, wireless accounts ipAddr and
// picUrlDetail.
type DeviceSummary struct {
	Serial    string      `json:"deviceSn"`
	ID        json.Number `json:"deviceId"`
	Model     string      `json:"deviceModelName"`
	Name      string      `json:"deviceName"`
	PicURL    string      `json:"picUrlDetail"`
	IPAddr    string      `json:"ipAddr"`
	Bluetooth string      `json:"bluetoothMac"`
}

// mapDescriptor is the map endpoint data object: file locations plus
// an optional inline path document.
type mapDescriptor struct {
	MapPathFileURL  string          `json:"mapPathFileUrl"`
	RealPathFileURL string          `json:"realPathFileUlr"` // vendor misspelling on the wire
	RealPathData    json.RawMessage `json:"realPathData"`
}

// coverageDescriptor is the heat map endpoint data object.
type coverageDescriptor struct {
	URL     string `json:"url"`
	WifiURL string `json:"wifiUrl"`
}

// MapBundle is the resolved map payload: the geometry document plus
// the mowing path history, both already downloaded.
type MapBundle struct {
	Geometry []byte
	RealPath []byte
}
