package cloud

import (
	"context"
	"fmt"
	nethttp "net/http"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	"github.com/spdl/spdl/internal/localfs"
)

// AzureOptions configures an AzureUploader. Exactly one of ServiceURL (with
// a SAS query) or ConnectionString is used, ServiceURL first.
type AzureOptions struct {
	ServiceURL       string
	ConnectionString string
	Container        string
	HTTPClient       *nethttp.Client
}

// AzureUploader uploads block blobs into one container.
type AzureUploader struct {
	client    *azblob.Client
	container string
}

// NewAzureUploader creates the blob client.
func NewAzureUploader(opts AzureOptions) (*AzureUploader, error) {
	if opts.Container == "" {
		return nil, fmt.Errorf("azure container is required")
	}

	clientOpts := &azblob.ClientOptions{}
	if opts.HTTPClient != nil {
		clientOpts.ClientOptions = azcore.ClientOptions{Transport: opts.HTTPClient}
	}

	var (
		client *azblob.Client
		err    error
	)
	switch {
	case opts.ServiceURL != "":
		client, err = azblob.NewClientWithNoCredential(opts.ServiceURL, clientOpts)
	case opts.ConnectionString != "":
		client, err = azblob.NewClientFromConnectionString(opts.ConnectionString, clientOpts)
	default:
		return nil, fmt.Errorf("azure target needs a SAS URL or AZURE_STORAGE_CONNECTION_STRING")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	return &AzureUploader{client: client, container: opts.Container}, nil
}

// Upload implements Uploader.
func (u *AzureUploader) Upload(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = u.client.UploadFile(ctx, u.container, key, f, &azblob.UploadFileOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: to.Ptr(localfs.ContentType(localPath)),
		},
	})
	if err != nil {
		return fmt.Errorf("upload %s/%s: %w", u.container, key, err)
	}
	return nil
}
