package sink

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"gopkg.in/yaml.v3"

	"github.com/okian/pitwall/internal/domain/types"
	"github.com/okian/pitwall/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

type fakePutter struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestEncodeCSV(t *testing.T) {
	Convey("Given two feature rows", t, func() {
		rows := []types.FeatureRow{
			{RaceID: 1100, DriverID: 1, Grid: 3, MSRace: 5_400_000},
			{RaceID: 1100, DriverID: 4, Grid: 20, MSRace: 10_000_000},
		}

		Convey("When encoding with the race time", func() {
			data, err := EncodeCSV(rows, true)
			So(err, ShouldBeNil)
			lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")

			Convey("Then there is a header and one line per row", func() {
				So(lines, ShouldHaveLength, 3)
				So(lines[0], ShouldEqual, strings.Join(types.Columns(true), ","))
				So(lines[1], ShouldStartWith, "1100,1,")
				So(lines[2], ShouldEndWith, ",10000000")
			})
		})

		Convey("When encoding without the race time", func() {
			data, err := EncodeCSV(rows, false)
			So(err, ShouldBeNil)

			Convey("Then MS RACE is absent", func() {
				So(string(data), ShouldNotContainSubstring, types.RaceTimeColumn)
			})
		})

		Convey("When encoding twice", func() {
			a, _ := EncodeCSV(rows, true)
			b, _ := EncodeCSV(rows, true)

			Convey("Then the bytes are identical", func() {
				So(bytes.Equal(a, b), ShouldBeTrue)
			})
		})
	})
}

func TestManifest(t *testing.T) {
	Convey("Given an output payload", t, func() {
		data := []byte("RACEID\n1\n")
		m := NewManifest("prediction", "out.csv", []string{"RACEID"}, 1, 1, data)

		Convey("Then the hash fingerprints the payload", func() {
			sum := sha256.Sum256(data)
			So(m.SHA256, ShouldEqual, hex.EncodeToString(sum[:]))
			So(m.RunID, ShouldNotBeEmpty)
		})

		Convey("Then two runs get different ids", func() {
			So(NewManifest("prediction", "out.csv", nil, 1, 1, data).RunID, ShouldNotEqual, m.RunID)
		})

		Convey("When encoded as YAML", func() {
			out, err := m.Encode()
			So(err, ShouldBeNil)

			Convey("Then it decodes back", func() {
				var back Manifest
				So(yaml.Unmarshal(out, &back), ShouldBeNil)
				So(back.RunID, ShouldEqual, m.RunID)
				So(back.Mode, ShouldEqual, "prediction")
				So(back.Rows, ShouldEqual, 1)
				So(back.Columns, ShouldResemble, []string{"RACEID"})
				So(back.CreatedAt.Equal(m.CreatedAt), ShouldBeTrue)
			})
		})
	})
}

func TestWriter(t *testing.T) {
	Convey("Given a writer", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		putter := &fakePutter{}
		w := NewWriter(WithObjectPutter(putter))
		data := []byte("a,b\n1,2\n")

		Convey("When writing a local file in a new directory", func() {
			path := filepath.Join(dir, "out", "features.csv")
			So(w.Write(ctx, path, data), ShouldBeNil)

			Convey("Then the file holds the payload", func() {
				got, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				So(got, ShouldResemble, data)
				entries, _ := os.ReadDir(filepath.Dir(path))
				So(entries, ShouldHaveLength, 1)
			})
		})

		Convey("When writing a .gz file", func() {
			path := filepath.Join(dir, "features.csv.gz")
			So(w.Write(ctx, path, data), ShouldBeNil)

			Convey("Then it is gzip-compressed and stable", func() {
				raw, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				zr, err := gzip.NewReader(bytes.NewReader(raw))
				So(err, ShouldBeNil)
				got, err := io.ReadAll(zr)
				So(err, ShouldBeNil)
				So(got, ShouldResemble, data)

				So(w.Write(ctx, path, data), ShouldBeNil)
				again, _ := os.ReadFile(path)
				So(again, ShouldResemble, raw)
			})
		})

		Convey("When writing to an S3 destination", func() {
			So(w.Write(ctx, "s3://bucket/runs/features.csv", data), ShouldBeNil)

			Convey("Then the object is put under the bucket and key", func() {
				So(aws.ToString(putter.in.Bucket), ShouldEqual, "bucket")
				So(aws.ToString(putter.in.Key), ShouldEqual, "runs/features.csv")
				So(aws.ToString(putter.in.ContentType), ShouldEqual, "text/csv")
				So(putter.body, ShouldResemble, data)
			})
		})

		Convey("When the S3 put fails", func() {
			putter.err = errors.New("denied")
			err := w.Write(ctx, "s3://bucket/features.csv", data)

			Convey("Then a write error is returned", func() {
				So(errors.Is(err, ErrWrite), ShouldBeTrue)
			})
		})

		Convey("When the destination is malformed", func() {
			So(errors.Is(w.Write(ctx, "s3://bucket", data), ErrDestination), ShouldBeTrue)
			So(errors.Is(w.Write(ctx, "s3:///key", data), ErrDestination), ShouldBeTrue)
			So(errors.Is(w.Write(ctx, " ", data), ErrDestination), ShouldBeTrue)
		})
	})
}

func TestWriterS3Endpoint(t *testing.T) {
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("AWS_ENDPOINT_URL", "")
	t.Setenv("AWS_ENDPOINT_URL_S3", "")
	t.Setenv("AWS_PROFILE", "")
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "credentials"))

	Convey("Given a writer for an S3-compatible endpoint", t, func() {
		w := NewWriter(WithS3Endpoint("http://minio:9000"))

		Convey("When the client is built", func() {
			c, err := w.client(context.Background())
			So(err, ShouldBeNil)
			client, ok := c.(*s3.Client)
			So(ok, ShouldBeTrue)

			Convey("Then it targets the endpoint with path-style addressing", func() {
				opts := client.Options()
				So(aws.ToString(opts.BaseEndpoint), ShouldEqual, "http://minio:9000")
				So(opts.UsePathStyle, ShouldBeTrue)
			})
		})
	})

	Convey("Given a writer without an endpoint", t, func() {
		w := NewWriter()

		Convey("Then the client keeps virtual-hosted addressing", func() {
			c, err := w.client(context.Background())
			So(err, ShouldBeNil)
			opts := c.(*s3.Client).Options()
			So(opts.BaseEndpoint, ShouldBeNil)
			So(opts.UsePathStyle, ShouldBeFalse)
		})
	})
}
