package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gofrs/uuid/v5"

	"github.com/zlnvch/layerdeck/models"
	"github.com/zlnvch/layerdeck/store"
)

const (
	gsiOwnerDesigns = "GSI_OwnerDesigns"
	gsiDesignLayers = "GSI_DesignLayers"
	gsiOwnerAssets  = "GSI_OwnerAssets"
	gsiAssetHash    = "GSI_AssetHash"
)

type DynamoLayerdeckStore struct {
	client    *dynamodb.Client
	tableName string
}

func NewDynamoLayerdeckStore(ctx context.Context, devMode bool, dynamodbEndpoint string, tableName string) (*DynamoLayerdeckStore, error) {
	client, err := newDynamoDBClient(ctx, devMode, dynamodbEndpoint)
	if err != nil {
		return nil, err
	}

	found, err := hasTable(ctx, client, tableName)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("given table name '%s' not found in dynamodb", tableName)
	}

	return &DynamoLayerdeckStore{client: client, tableName: tableName}, nil
}

func newId() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (dynamoStore *DynamoLayerdeckStore) CreateOwner(ctx context.Context, owner models.Owner) (models.Owner, error) {
	id, err := newId()
	if err != nil {
		return models.Owner{}, err
	}
	owner.Id = id
	owner.Created = time.Now().Unix()

	// A concurrent first login for the same identity keeps the stored owner
	do, err := putNewItem(dynamoStore, ctx, ownerToDynamo(owner), true)
	if err != nil {
		return models.Owner{}, err
	}
	return ownerFromDynamo(do), nil
}

func (dynamoStore *DynamoLayerdeckStore) GetOwner(ctx context.Context, provider string, providerId string) (models.Owner, error) {
	do, err := getItem[dynamoOwner](dynamoStore, ctx, ownerPrefix+provider+"#"+providerId, profileSK, false)
	if err != nil {
		return models.Owner{}, err
	}
	return ownerFromDynamo(do), nil
}

func (dynamoStore *DynamoLayerdeckStore) CreateDesign(ctx context.Context, design models.Design) (models.Design, error) {
	id, err := newId()
	if err != nil {
		return models.Design{}, err
	}
	now := time.Now().Unix()
	design.Id = id
	design.Created = now
	design.Updated = now
	design.Revision = 0
	design.Layers = nil

	dd, err := putNewItem(dynamoStore, ctx, designToDynamo(design), false)
	if err != nil {
		return models.Design{}, err
	}
	return designFromDynamo(dd), nil
}

func (dynamoStore *DynamoLayerdeckStore) GetDesign(ctx context.Context, designId string) (models.Design, error) {
	dd, err := getItem[dynamoDesign](dynamoStore, ctx, designPrefix+designId, metaSK, true)
	if err != nil {
		return models.Design{}, err
	}
	return designFromDynamo(dd), nil
}

func (dynamoStore *DynamoLayerdeckStore) ListDesigns(ctx context.Context, ownerId string) ([]models.Design, error) {
	// Most recently edited first
	items, err := queryIndex[dynamoDesign](dynamoStore, ctx, indexQuery{
		index:   gsiOwnerDesigns,
		pkField: "OwnerId",
		pkValue: ownerId,
		forward: false,
	})
	if err != nil {
		return nil, err
	}

	designs := make([]models.Design, 0, len(items))
	for _, dd := range items {
		designs = append(designs, designFromDynamo(dd))
	}
	return designs, nil
}

func (dynamoStore *DynamoLayerdeckStore) DeleteDesign(ctx context.Context, designId string, ownerId string) error {
	return deleteItemWithCondition(dynamoStore, ctx, designPrefix+designId, metaSK, "OwnerId", ownerId)
}

func (dynamoStore *DynamoLayerdeckStore) TouchDesign(ctx context.Context, designId string, edits int, updated int64) error {
	return incrementCounter(dynamoStore, ctx, designPrefix+designId, metaSK, "Revision", edits, "Updated", updated)
}

func (dynamoStore *DynamoLayerdeckStore) CreateLayer(ctx context.Context, layer models.Layer) (models.Layer, error) {
	id, err := newId()
	if err != nil {
		return models.Layer{}, err
	}
	layer.Id = id
	layer.Updated = time.Now().Unix()

	dl, err := putNewItem(dynamoStore, ctx, layerToDynamo(layer), false)
	if err != nil {
		return models.Layer{}, err
	}
	return layerFromDynamo(dl), nil
}

func (dynamoStore *DynamoLayerdeckStore) GetLayer(ctx context.Context, layerId string) (models.Layer, error) {
	dl, err := getItem[dynamoLayer](dynamoStore, ctx, layerPrefix+layerId, metaSK, true)
	if err != nil {
		return models.Layer{}, err
	}
	return layerFromDynamo(dl), nil
}

func (dynamoStore *DynamoLayerdeckStore) UpdateLayer(ctx context.Context, layerId string, patch models.LayerPatch) (models.Layer, error) {
	layer, err := dynamoStore.GetLayer(ctx, layerId)
	if err != nil {
		return models.Layer{}, err
	}

	patch.Apply(&layer)
	layer.Updated = time.Now().Unix()

	dl, err := updateItem(dynamoStore, ctx, layerToDynamo(layer), layerMutableFields)
	if err != nil {
		return models.Layer{}, err
	}
	return layerFromDynamo(dl), nil
}

func (dynamoStore *DynamoLayerdeckStore) DeleteLayer(ctx context.Context, layerId string) error {
	return deleteItemWithCondition(dynamoStore, ctx, layerPrefix+layerId, metaSK, "", "")
}

func (dynamoStore *DynamoLayerdeckStore) GetDesignLayers(ctx context.Context, designId string) ([]models.Layer, error) {
	items, err := queryIndex[dynamoLayer](dynamoStore, ctx, indexQuery{
		index:   gsiDesignLayers,
		pkField: "DesignId",
		pkValue: designId,
		forward: true,
	})
	if err != nil {
		return nil, err
	}

	layers := make([]models.Layer, 0, len(items))
	for _, dl := range items {
		layers = append(layers, layerFromDynamo(dl))
	}
	return layers, nil
}

func (dynamoStore *DynamoLayerdeckStore) CountDesignLayers(ctx context.Context, designId string) (int, error) {
	return countIndex(dynamoStore, ctx, indexQuery{index: gsiDesignLayers, pkField: "DesignId", pkValue: designId})
}

func (dynamoStore *DynamoLayerdeckStore) DeleteDesignLayers(ctx context.Context, designId string) error {
	_, err := batchDeleteByIndexThrottled(dynamoStore, ctx,
		indexQuery{index: gsiDesignLayers, pkField: "DesignId", pkValue: designId},
		50*time.Millisecond,
	)
	return err
}

func (dynamoStore *DynamoLayerdeckStore) CreateAsset(ctx context.Context, asset models.Asset) (models.Asset, error) {
	id, err := newId()
	if err != nil {
		return models.Asset{}, err
	}
	asset.Id = id
	asset.Created = time.Now().Unix()

	da, err := putNewItem(dynamoStore, ctx, assetToDynamo(asset), false)
	if err != nil {
		return models.Asset{}, err
	}
	return assetFromDynamo(da), nil
}

func (dynamoStore *DynamoLayerdeckStore) GetAsset(ctx context.Context, assetId string) (models.Asset, error) {
	da, err := getItem[dynamoAsset](dynamoStore, ctx, assetPrefix+assetId, metaSK, false)
	if err != nil {
		return models.Asset{}, err
	}
	return assetFromDynamo(da), nil
}

func (dynamoStore *DynamoLayerdeckStore) FindAssetByHash(ctx context.Context, sha256 string) (models.Asset, error) {
	items, err := queryIndex[dynamoAsset](dynamoStore, ctx, indexQuery{
		index:   gsiAssetHash,
		pkField: "Sha256",
		pkValue: sha256,
		forward: true,
		limit:   1,
	})
	if err != nil {
		return models.Asset{}, err
	}
	if len(items) == 0 {
		return models.Asset{}, store.ErrItemNotFound
	}
	return assetFromDynamo(items[0]), nil
}

func (dynamoStore *DynamoLayerdeckStore) ListAssets(ctx context.Context, ownerId string) ([]models.Asset, error) {
	items, err := queryIndex[dynamoAsset](dynamoStore, ctx, indexQuery{
		index:   gsiOwnerAssets,
		pkField: "UploaderId",
		pkValue: ownerId,
		forward: false,
	})
	if err != nil {
		return nil, err
	}

	assets := make([]models.Asset, 0, len(items))
	for _, da := range items {
		assets = append(assets, assetFromDynamo(da))
	}
	return assets, nil
}
