package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Mandaris-LLC/stagemaster-ai/internal/models"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/staging"
)

// fakeRoomServer serves a mutable room plus a canned upload response.
type fakeRoomServer struct {
	mu   sync.Mutex
	room models.Room
}

func (s *fakeRoomServer) setRoom(room models.Room) {
	s.mu.Lock()
	s.room = room
	s.mu.Unlock()
}

func (s *fakeRoomServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/rooms/", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		room := s.room
		s.mu.Unlock()
		json.NewEncoder(w).Encode(room)
	})
	mux.HandleFunc("/api/v1/images/upload", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		roomID := r.FormValue("room_id")
		image := models.Image{ID: "img-new", OriginalURL: "http://files/stage-uploads/img-new.jpg"}
		if roomID != "" {
			image.RoomID = &roomID
		}

		// Mirror the server rule: first upload into an empty room becomes
		// the reference.
		s.mu.Lock()
		if len(s.room.Images) == 0 {
			id := image.ID
			s.room.ReferenceImageID = &id
		}
		s.room.Images = append(s.room.Images, image)
		s.mu.Unlock()

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(image)
	})
	return mux
}

func roomWithImages(images ...models.Image) models.Room {
	room := models.Room{ID: "r1", PropertyID: "p1", Name: "Living Room", RoomType: "living_room", Images: images}
	if len(images) > 0 {
		id := images[0].ID
		room.ReferenceImageID = &id
	}
	return room
}

func TestRefreshDefaultsToStagedWhenResultExists(t *testing.T) {
	server := &fakeRoomServer{}
	server.setRoom(roomWithImages(
		models.Image{ID: "img-1", OriginalURL: "http://files/o1.jpg", LatestResultURL: "http://files/s1.jpg"},
		models.Image{ID: "img-2", OriginalURL: "http://files/o2.jpg"},
	))
	ts := httptest.NewServer(server.handler())
	defer ts.Close()

	rc := NewRoomController(NewClient(ts.URL), "r1")
	view, err := rc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if !view.ShowStaged["img-1"] {
		t.Fatal("image with staged result should default to staged display")
	}
	if view.ShowStaged["img-2"] {
		t.Fatal("image without result should default to original display")
	}
	if got := view.DisplayURL("img-1"); got != "http://files/s1.jpg" {
		t.Fatalf("DisplayURL(img-1) = %s, want staged URL", got)
	}
	if got := view.DisplayURL("img-2"); got != "http://files/o2.jpg" {
		t.Fatalf("DisplayURL(img-2) = %s, want original URL", got)
	}
}

func TestRefreshPreservesUserToggles(t *testing.T) {
	server := &fakeRoomServer{}
	server.setRoom(roomWithImages(
		models.Image{ID: "img-1", OriginalURL: "http://files/o1.jpg", LatestResultURL: "http://files/s1.jpg"},
	))
	ts := httptest.NewServer(server.handler())
	defer ts.Close()

	rc := NewRoomController(NewClient(ts.URL), "r1")
	if _, err := rc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	// User flips img-1 to original, then the room reloads.
	if got := rc.Toggle("img-1"); got {
		t.Fatal("Toggle should have flipped img-1 to original")
	}
	view, err := rc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if view.ShowStaged["img-1"] {
		t.Fatal("reload overwrote a user toggle")
	}
}

func TestUploadIntoEmptyRoomOpensEditor(t *testing.T) {
	server := &fakeRoomServer{}
	server.setRoom(roomWithImages())
	ts := httptest.NewServer(server.handler())
	defer ts.Close()

	rc := NewRoomController(NewClient(ts.URL), "r1")
	if _, err := rc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	result, err := rc.Upload(context.Background(), "photo.jpg", []byte("fake-image-bytes"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if !result.OpenEditor {
		t.Fatal("upload into empty room should open the editor")
	}
	if result.SeedOptions != staging.DefaultOptions() {
		t.Fatalf("seed options = %+v, want defaults", result.SeedOptions)
	}
}

func TestUploadBeforeFirstRefreshStillOpensEditor(t *testing.T) {
	server := &fakeRoomServer{}
	server.setRoom(roomWithImages())
	ts := httptest.NewServer(server.handler())
	defer ts.Close()

	// No Refresh first: the controller has never seen the room.
	rc := NewRoomController(NewClient(ts.URL), "r1")
	result, err := rc.Upload(context.Background(), "photo.jpg", []byte("fake-image-bytes"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if !result.OpenEditor {
		t.Fatal("first upload into an empty room should open the editor even without a prior refresh")
	}
}

func TestUploadIntoPopulatedRoomDoesNotOpenEditor(t *testing.T) {
	server := &fakeRoomServer{}
	server.setRoom(roomWithImages(
		models.Image{ID: "img-1", OriginalURL: "http://files/o1.jpg"},
	))
	ts := httptest.NewServer(server.handler())
	defer ts.Close()

	rc := NewRoomController(NewClient(ts.URL), "r1")
	if _, err := rc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	result, err := rc.Upload(context.Background(), "photo.jpg", []byte("fake-image-bytes"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if result.OpenEditor {
		t.Fatal("upload into populated room must not open the editor")
	}
}

func TestDeleteRoomRejectedLocallyWhileImagesRemain(t *testing.T) {
	server := &fakeRoomServer{}
	server.setRoom(roomWithImages(
		models.Image{ID: "img-1", OriginalURL: "http://files/o1.jpg"},
	))
	ts := httptest.NewServer(server.handler())
	defer ts.Close()

	rc := NewRoomController(NewClient(ts.URL), "r1")
	if _, err := rc.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	err := rc.DeleteRoom(context.Background())
	if !staging.IsPrecondition(err) {
		t.Fatalf("DeleteRoom() error = %v, want PreconditionError", err)
	}
}
