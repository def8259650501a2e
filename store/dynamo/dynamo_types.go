package dynamo

import (
	"strings"

	"github.com/zlnvch/layerdeck/models"
)

const (
	ownerPrefix  = "OWNER#"
	designPrefix = "DESIGN#"
	layerPrefix  = "LAYER#"
	assetPrefix  = "ASSET#"

	profileSK = "PROFILE"
	metaSK    = "META"
)

type dynamoOwner struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	Id         string `dynamodbav:"Id"`
	Provider   string `dynamodbav:"Provider"`
	ProviderId string `dynamodbav:"ProviderId"`
	Username   string `dynamodbav:"Username"`
	Created    int64  `dynamodbav:"Created"`
}

func ownerToDynamo(o models.Owner) dynamoOwner {
	return dynamoOwner{
		PK:         ownerPrefix + o.Provider + "#" + o.ProviderId,
		SK:         profileSK,
		Id:         o.Id,
		Provider:   o.Provider,
		ProviderId: o.ProviderId,
		Username:   o.Username,
		Created:    o.Created,
	}
}

func ownerFromDynamo(do dynamoOwner) models.Owner {
	return models.Owner{
		Id:         do.Id,
		Username:   do.Username,
		Provider:   do.Provider,
		ProviderId: do.ProviderId,
		Created:    do.Created,
	}
}

// Designs are listed per owner through GSI_OwnerDesigns (OwnerId, Updated)
type dynamoDesign struct {
	PK       string `dynamodbav:"PK"`
	SK       string `dynamodbav:"SK"`
	OwnerId  string `dynamodbav:"OwnerId"`
	Title    string `dynamodbav:"Title"`
	Width    int    `dynamodbav:"Width"`
	Height   int    `dynamodbav:"Height"`
	Created  int64  `dynamodbav:"Created"`
	Updated  int64  `dynamodbav:"Updated"`
	Revision int    `dynamodbav:"Revision"`
}

func designToDynamo(d models.Design) dynamoDesign {
	return dynamoDesign{
		PK:       designPrefix + d.Id,
		SK:       metaSK,
		OwnerId:  d.OwnerId,
		Title:    d.Title,
		Width:    d.Width,
		Height:   d.Height,
		Created:  d.Created,
		Updated:  d.Updated,
		Revision: d.Revision,
	}
}

func designFromDynamo(dd dynamoDesign) models.Design {
	return models.Design{
		Id:       strings.TrimPrefix(dd.PK, designPrefix),
		OwnerId:  dd.OwnerId,
		Title:    dd.Title,
		Width:    dd.Width,
		Height:   dd.Height,
		Created:  dd.Created,
		Updated:  dd.Updated,
		Revision: dd.Revision,
	}
}

type dynamoCrop struct {
	X float64 `dynamodbav:"X"`
	Y float64 `dynamodbav:"Y"`
	W float64 `dynamodbav:"W"`
	H float64 `dynamodbav:"H"`
}

// Layers are listed per design through GSI_DesignLayers (DesignId, ZIndex).
// Crop marshals to NULL when unset so an update can clear it.
type dynamoLayer struct {
	PK       string      `dynamodbav:"PK"`
	SK       string      `dynamodbav:"SK"`
	DesignId string      `dynamodbav:"DesignId"`
	Type     string      `dynamodbav:"Type"`
	AssetId  string      `dynamodbav:"AssetId"`
	ZIndex   int         `dynamodbav:"ZIndex"`
	X        float64     `dynamodbav:"X"`
	Y        float64     `dynamodbav:"Y"`
	Width    float64     `dynamodbav:"Width"`
	Height   float64     `dynamodbav:"Height"`
	Rotation float64     `dynamodbav:"Rotation"`
	FlipX    bool        `dynamodbav:"FlipX"`
	FlipY    bool        `dynamodbav:"FlipY"`
	Opacity  float64     `dynamodbav:"Opacity"`
	Visible  bool        `dynamodbav:"Visible"`
	Locked   bool        `dynamodbav:"Locked"`
	Crop     *dynamoCrop `dynamodbav:"Crop"`
	Updated  int64       `dynamodbav:"Updated"`
}

// Attributes rewritten on every layer update
var layerMutableFields = []string{
	"ZIndex", "X", "Y", "Width", "Height", "Rotation",
	"FlipX", "FlipY", "Opacity", "Visible", "Locked", "Crop", "Updated",
}

func layerToDynamo(l models.Layer) dynamoLayer {
	dl := dynamoLayer{
		PK:       layerPrefix + l.Id,
		SK:       metaSK,
		DesignId: l.DesignId,
		Type:     string(l.Type),
		AssetId:  l.AssetId,
		ZIndex:   l.ZIndex,
		X:        l.X,
		Y:        l.Y,
		Width:    l.Width,
		Height:   l.Height,
		Rotation: l.Rotation,
		FlipX:    l.FlipX,
		FlipY:    l.FlipY,
		Opacity:  l.Opacity,
		Visible:  l.Visible,
		Locked:   l.Locked,
		Updated:  l.Updated,
	}
	if l.Crop != nil {
		dl.Crop = &dynamoCrop{X: l.Crop.X, Y: l.Crop.Y, W: l.Crop.W, H: l.Crop.H}
	}
	return dl
}

func layerFromDynamo(dl dynamoLayer) models.Layer {
	l := models.Layer{
		Id:       strings.TrimPrefix(dl.PK, layerPrefix),
		DesignId: dl.DesignId,
		Type:     models.LayerType(dl.Type),
		AssetId:  dl.AssetId,
		ZIndex:   dl.ZIndex,
		X:        dl.X,
		Y:        dl.Y,
		Width:    dl.Width,
		Height:   dl.Height,
		Rotation: dl.Rotation,
		FlipX:    dl.FlipX,
		FlipY:    dl.FlipY,
		Opacity:  dl.Opacity,
		Visible:  dl.Visible,
		Locked:   dl.Locked,
		Updated:  dl.Updated,
	}
	if dl.Crop != nil {
		l.Crop = &models.CropWindow{X: dl.Crop.X, Y: dl.Crop.Y, W: dl.Crop.W, H: dl.Crop.H}
	}
	return l
}

// Assets are listed through GSI_OwnerAssets (UploaderId, Created) and
// deduplicated through GSI_AssetHash (Sha256). UploaderId is kept apart
// from OwnerId so designs never show up in the asset index.
type dynamoAsset struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	UploaderId   string `dynamodbav:"UploaderId"`
	Url          string `dynamodbav:"Url"`
	OriginalName string `dynamodbav:"OriginalName"`
	Width        int    `dynamodbav:"Width"`
	Height       int    `dynamodbav:"Height"`
	Sha256       string `dynamodbav:"Sha256"`
	SizeBytes    int64  `dynamodbav:"SizeBytes"`
	MimeType     string `dynamodbav:"MimeType"`
	Created      int64  `dynamodbav:"Created"`
}

func assetToDynamo(a models.Asset) dynamoAsset {
	return dynamoAsset{
		PK:           assetPrefix + a.Id,
		SK:           metaSK,
		UploaderId:   a.OwnerId,
		Url:          a.Url,
		OriginalName: a.OriginalName,
		Width:        a.Width,
		Height:       a.Height,
		Sha256:       a.Sha256,
		SizeBytes:    a.SizeBytes,
		MimeType:     a.MimeType,
		Created:      a.Created,
	}
}

func assetFromDynamo(da dynamoAsset) models.Asset {
	return models.Asset{
		Id:           strings.TrimPrefix(da.PK, assetPrefix),
		OwnerId:      da.UploaderId,
		Url:          da.Url,
		OriginalName: da.OriginalName,
		Width:        da.Width,
		Height:       da.Height,
		Sha256:       da.Sha256,
		SizeBytes:    da.SizeBytes,
		MimeType:     da.MimeType,
		Created:      da.Created,
	}
}
