package model

// ImageAsset is an image chosen through the picker with its content inline.
type ImageAsset struct {
	Type   string // MIME type, e.g. "image/jpeg".
	Base64 string
}

// DataURI encodes the asset as a data URI suitable for the imageBase64 field.
func (a ImageAsset) DataURI() string {
	return "data:" + a.Type + ";base64," + a.Base64
}

// PickResult is the outcome of an image pick. Exactly one of Cancelled,
// Err or Asset is set.
type PickResult struct {
	Cancelled bool
	Err       error
	Asset     *ImageAsset
}

// PickCancelled reports that the user dismissed the picker.
func PickCancelled() PickResult {
	return PickResult{Cancelled: true}
}

// PickFailed reports a picker error.
func PickFailed(err error) PickResult {
	return PickResult{Err: err}
}

// Picked reports a chosen asset.
func Picked(asset ImageAsset) PickResult {
	return PickResult{Asset: &asset}
}
