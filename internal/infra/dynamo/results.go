package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/videoxray/videoxray-pipeline-service/internal/domain/entity"
)

const sortKeyPrefix = "RESULTS#"

// FrameResultStore keeps frame records under PK = video name and
// SK = RESULTS#{frame_time}. PutItem is a full-item upsert, and the
// zero-padded sort key makes an ascending query return chronological order.
type FrameResultStore struct {
	client *dynamodb.Client
	table  string
}

func NewFrameResultStore(cfg aws.Config, table string) *FrameResultStore {
	return &FrameResultStore{client: dynamodb.NewFromConfig(cfg), table: table}
}

type frameResultItem struct {
	PK                string             `dynamodbav:"PK"`
	SK                string             `dynamodbav:"SK"`
	CorrelationID     string             `dynamodbav:"correlation_id"`
	FrameTime         string             `dynamodbav:"frame_time"`
	RawImageKey       string             `dynamodbav:"raw_image_key"`
	ProcessedImageKey string             `dynamodbav:"processed_image_key"`
	Detections        []entity.Detection `dynamodbav:"detections"`
	CelebrityCount    int                `dynamodbav:"celebrity_count"`
}

func (s *FrameResultStore) Save(ctx context.Context, result *entity.FrameResult) error {
	item, err := attributevalue.MarshalMap(frameResultItem{
		PK:                result.VideoName,
		SK:                sortKeyPrefix + result.FrameTime,
		CorrelationID:     result.CorrelationID,
		FrameTime:         result.FrameTime,
		RawImageKey:       result.RawImageKey,
		ProcessedImageKey: result.ProcessedImageKey,
		Detections:        result.Detections,
		CelebrityCount:    result.CelebrityCount,
	})
	if err != nil {
		return fmt.Errorf("marshal frame result: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put frame result: %w", err)
	}
	return nil
}

func (s *FrameResultStore) Get(ctx context.Context, videoName, frameTime string) (*entity.FrameResult, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: videoName},
			"SK": &types.AttributeValueMemberS{Value: sortKeyPrefix + frameTime},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get frame result: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("frame result %s/%s not found", videoName, frameTime)
	}

	var item frameResultItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal frame result: %w", err)
	}
	result := item.toEntity(videoName)
	return &result, nil
}

func (s *FrameResultStore) QueryByVideo(ctx context.Context, videoName string) ([]entity.FrameResult, error) {
	var results []entity.FrameResult
	var startKey map[string]types.AttributeValue

	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.table),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":     &types.AttributeValueMemberS{Value: videoName},
				":prefix": &types.AttributeValueMemberS{Value: sortKeyPrefix},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("query frame results: %w", err)
		}

		var items []frameResultItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal frame results: %w", err)
		}
		for _, item := range items {
			results = append(results, item.toEntity(videoName))
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return results, nil
}

func (i frameResultItem) toEntity(videoName string) entity.FrameResult {
	return entity.FrameResult{
		VideoName:         videoName,
		FrameTime:         i.FrameTime,
		CorrelationID:     i.CorrelationID,
		RawImageKey:       i.RawImageKey,
		ProcessedImageKey: i.ProcessedImageKey,
		Detections:        i.Detections,
		CelebrityCount:    i.CelebrityCount,
	}
}
