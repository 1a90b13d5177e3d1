package report

import (
	"context"
	"fmt"

	"git.fiblab.net/general/common/v2/mongoutil"
	"github.com/samber/lo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoStore 训练历史的MongoDB存储，每条记录一个文档
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore 连接MongoDB
// 参数：uri-连接串，db-数据库名，col-集合名
func NewMongoStore(uri, db, col string) *MongoStore {
	client := mongoutil.NewClient(uri)
	return &MongoStore{
		client: client,
		coll:   client.Database(db).Collection(col),
	}
}

// historyDocument 一条记录对应的文档
type historyDocument struct {
	RunID  string `bson:"run_id"`
	Record `bson:",inline"`
}

func documents(h *History) []any {
	return lo.Map(h.Records, func(r Record, _ int) any {
		return historyDocument{RunID: h.RunID, Record: r}
	})
}

// Save 写入训练历史，同一RunID的旧文档先被删除
func (s *MongoStore) Save(ctx context.Context, h *History) error {
	if _, err := s.coll.DeleteMany(ctx, bson.M{"run_id": h.RunID}); err != nil {
		return fmt.Errorf("delete run %s: %w", h.RunID, err)
	}
	if h.Len() == 0 {
		return nil
	}
	if _, err := s.coll.InsertMany(ctx, documents(h)); err != nil {
		return fmt.Errorf("insert run %s: %w", h.RunID, err)
	}
	log.Infof("history of run %s saved to %s.%s", h.RunID, s.coll.Database().Name(), s.coll.Name())
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
