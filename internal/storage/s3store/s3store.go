// Пакет s3store — S3-совместимый бэкенд blob-хранилища.
// Поддерживает AWS S3 и совместимые хранилища (MinIO, Cloudflare R2)
// через статические credentials и кастомный endpoint.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Options — параметры подключения к S3-совместимому хранилищу.
type Options struct {
	// Endpoint — URL хранилища (пусто = AWS по региону)
	Endpoint string
	// Region — регион S3
	Region string
	// Bucket — имя бакета
	Bucket string
	// AccessKey — ключ доступа
	AccessKey string
	// SecretKey — секретный ключ
	SecretKey string
	// UsePathStyle — path-style адресация (MinIO, R2)
	UsePathStyle bool
}

// S3Store — хранение физического содержимого в S3-совместимом бакете.
type S3Store struct {
	client *s3.Client
	bucket string
}

// New создаёт клиент S3 со статическими credentials и кастомным endpoint.
func New(opts Options) *S3Store {
	cfg := aws.Config{
		Credentials: credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		Region:      opts.Region,
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	return &S3Store{client: client, bucket: opts.Bucket}
}

// Save загружает содержимое из r в бакет под ключом key.
// Возвращает количество записанных байт.
func (s *S3Store) Save(ctx context.Context, key string, r io.Reader) (int64, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}

	// Для seekable-источника (multipart upload) размер известен заранее,
	// что позволяет SDK подписать запрос без буферизации.
	if seeker, ok := r.(io.Seeker); ok {
		cur, err := seeker.Seek(0, io.SeekCurrent)
		if err != nil {
			return 0, fmt.Errorf("ошибка определения позиции источника: %w", err)
		}
		end, err := seeker.Seek(0, io.SeekEnd)
		if err != nil {
			return 0, fmt.Errorf("ошибка определения размера источника: %w", err)
		}
		if _, err := seeker.Seek(cur, io.SeekStart); err != nil {
			return 0, fmt.Errorf("ошибка возврата позиции источника: %w", err)
		}
		input.ContentLength = aws.Int64(end - cur)
	}

	counter := &countingReader{r: r}
	input.Body = counter

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return 0, fmt.Errorf("ошибка загрузки объекта %s: %w", key, err)
	}

	return counter.n, nil
}

// Open открывает содержимое по ключу для чтения.
// Вызывающий код обязан закрыть ReadCloser.
func (s *S3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("содержимое не найдено: %s", key)
		}
		return nil, fmt.Errorf("ошибка чтения объекта %s: %w", key, err)
	}
	return out.Body, nil
}

// Delete удаляет содержимое по ключу.
// S3 DeleteObject идемпотентен: отсутствие объекта не является ошибкой.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления объекта %s: %w", key, err)
	}
	return nil
}

// Exists проверяет наличие объекта по ключу через HeadObject.
func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *s3types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("ошибка проверки объекта %s: %w", key, err)
	}
	return true, nil
}

// countingReader считает прочитанные байты для отчёта о размере загрузки.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
