// Package storage は画像のオブジェクトストレージとメタデータ管理を提供する。
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrObjectNotFound は指定キーのオブジェクトが存在しないことを表す。
// 「画像が無い」と「ストレージ障害」を呼び出し元が区別できるよう、
// その他の転送エラーとは別に返す。
var ErrObjectNotFound = errors.New("object not found")

// Object は取得したオブジェクトの内容を表す。
type Object struct {
	Data        []byte
	ContentType string
}

// ObjectStore はオブジェクトストレージの操作インターフェース。
type ObjectStore interface {
	// Put はオブジェクトを保存する。
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get はオブジェクトを取得する。存在しない場合はErrObjectNotFoundを返す。
	Get(ctx context.Context, key string) (*Object, error)
	// Remove はオブジェクトを削除する。
	Remove(ctx context.Context, key string) error
}

// MinioConfig はS3互換オブジェクトストレージへの接続設定。
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStore はS3互換APIによるObjectStoreの実装。
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore はMinioStoreを生成する。接続確認は行わない。
func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}

	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

// Put はオブジェクトを保存する。
func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return fmt.Errorf("failed to put object: %w", err)
	}
	return nil
}

// Get はオブジェクトを取得する。存在しない場合はErrObjectNotFoundを返す。
func (s *MinioStore) Get(ctx context.Context, key string) (*Object, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer obj.Close()

	// GetObjectは遅延実行のため、存在確認はStatで行う
	stat, err := obj.Stat()
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}

	return &Object{Data: data, ContentType: stat.ContentType}, nil
}

// Remove はオブジェクトを削除する。
func (s *MinioStore) Remove(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ObjectStore = (*MinioStore)(nil)
