package models

// ImageInput is one image selected for a new listing, in submission order.
type ImageInput struct {
	Filename    string
	ContentType string
	Data        []byte
}

func (i ImageInput) Size() int64 { return int64(len(i.Data)) }

type VideoInput struct {
	Filename    string
	ContentType string
	Data        []byte
}

func (v VideoInput) Size() int64 { return int64(len(v.Data)) }
