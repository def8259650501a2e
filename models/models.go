package models

type Owner struct {
	Id         string
	Username   string
	Provider   string
	ProviderId string
	Created    int64
}

type Asset struct {
	Id           string `json:"id"`
	OwnerId      string `json:"ownerId"`
	Url          string `json:"url"`
	OriginalName string `json:"originalName"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Sha256       string `json:"sha256"`
	SizeBytes    int64  `json:"sizeBytes"`
	MimeType     string `json:"mimeType"`
	Created      int64  `json:"created"`
}

type LayerType string

const (
	LayerImage LayerType = "IMAGE"
	// Reserved, the engine only renders image layers
	LayerText  LayerType = "TEXT"
	LayerShape LayerType = "SHAPE"
)

// CropWindow is the visible sub-rectangle of an asset, in the asset's
// natural pixel space.
type CropWindow struct {
	X float64 `json:"cropX"`
	Y float64 `json:"cropY"`
	W float64 `json:"cropW"`
	H float64 `json:"cropH"`
}

type Layer struct {
	Id       string      `json:"id"`
	DesignId string      `json:"designId"`
	Type     LayerType   `json:"type"`
	AssetId  string      `json:"assetId"`
	Asset    *Asset      `json:"asset,omitempty"`
	ZIndex   int         `json:"zIndex"`
	X        float64     `json:"x"`
	Y        float64     `json:"y"`
	Width    float64     `json:"width"`
	Height   float64     `json:"height"`
	Rotation float64     `json:"rotation"`
	FlipX    bool        `json:"flipX"`
	FlipY    bool        `json:"flipY"`
	Opacity  float64     `json:"opacity"`
	Visible  bool        `json:"visible"`
	Locked   bool        `json:"locked"`
	Crop     *CropWindow `json:"crop,omitempty"`
	Updated  int64       `json:"updated"`
}

type Design struct {
	Id       string  `json:"id"`
	OwnerId  string  `json:"ownerId"`
	Title    string  `json:"title"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Created  int64   `json:"created"`
	Updated  int64   `json:"updated"`
	Revision int     `json:"revision"` // layer edits folded in so far
	Layers   []Layer `json:"layers,omitempty"`
}

// LayerSpec is the create request for a layer. The store assigns the id.
type LayerSpec struct {
	Type     LayerType   `json:"type"`
	DesignId string      `json:"designId"`
	AssetId  string      `json:"assetId"`
	X        float64     `json:"x"`
	Y        float64     `json:"y"`
	Width    float64     `json:"width"`
	Height   float64     `json:"height"`
	Rotation float64     `json:"rotation"`
	FlipX    bool        `json:"flipX"`
	FlipY    bool        `json:"flipY"`
	Opacity  float64     `json:"opacity"`
	ZIndex   int         `json:"zIndex"`
	Visible  bool        `json:"visible"`
	Locked   bool        `json:"locked"`
	Crop     *CropWindow `json:"crop,omitempty"`
}

// LayerPatch is a partial layer update. Nil fields are left untouched.
// ClearCrop removes the crop window and takes precedence over Crop.
type LayerPatch struct {
	X         *float64    `json:"x,omitempty"`
	Y         *float64    `json:"y,omitempty"`
	Width     *float64    `json:"width,omitempty"`
	Height    *float64    `json:"height,omitempty"`
	Rotation  *float64    `json:"rotation,omitempty"`
	FlipX     *bool       `json:"flipX,omitempty"`
	FlipY     *bool       `json:"flipY,omitempty"`
	Opacity   *float64    `json:"opacity,omitempty"`
	ZIndex    *int        `json:"zIndex,omitempty"`
	Visible   *bool       `json:"visible,omitempty"`
	Locked    *bool       `json:"locked,omitempty"`
	Crop      *CropWindow `json:"crop,omitempty"`
	ClearCrop bool        `json:"clearCrop,omitempty"`
}

// Apply copies every set field of the patch onto the layer.
func (p LayerPatch) Apply(l *Layer) {
	if p.X != nil {
		l.X = *p.X
	}
	if p.Y != nil {
		l.Y = *p.Y
	}
	if p.Width != nil {
		l.Width = *p.Width
	}
	if p.Height != nil {
		l.Height = *p.Height
	}
	if p.Rotation != nil {
		l.Rotation = *p.Rotation
	}
	if p.FlipX != nil {
		l.FlipX = *p.FlipX
	}
	if p.FlipY != nil {
		l.FlipY = *p.FlipY
	}
	if p.Opacity != nil {
		l.Opacity = *p.Opacity
	}
	if p.ZIndex != nil {
		l.ZIndex = *p.ZIndex
	}
	if p.Visible != nil {
		l.Visible = *p.Visible
	}
	if p.Locked != nil {
		l.Locked = *p.Locked
	}
	if p.ClearCrop {
		l.Crop = nil
	} else if p.Crop != nil {
		c := *p.Crop
		l.Crop = &c
	}
}

// Upload is a raw asset file handed to the asset collaborator.
type Upload struct {
	Filename string
	MimeType string
	Data     []byte
}
